package model

import (
	"errors"
	"time"
)

// Collection names. They double as URL path segments and as the resource
// names used by the access policy.
const (
	CollectionCauses     = "causes"
	CollectionDonations  = "donations"
	CollectionEvents     = "events"
	CollectionBlogs      = "blogs"
	CollectionVolunteers = "volunteers"
	CollectionContacts   = "contacts"
)

// Collections lists every content collection in display order.
var Collections = []string{
	CollectionCauses,
	CollectionEvents,
	CollectionBlogs,
	CollectionDonations,
	CollectionVolunteers,
	CollectionContacts,
}

// Donation statuses.
const (
	DonationPending   = "pending"
	DonationCompleted = "completed"
	DonationFailed    = "failed"
)

// DocumentMeta holds the store-managed fields every content document carries.
// Clients cannot set these; the store assigns them on insert and update.
type DocumentMeta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta returns a pointer to the document's store-managed fields.
func (m *DocumentMeta) Meta() *DocumentMeta { return m }

// Document is implemented by every content type persisted in the document store.
type Document interface {
	Meta() *DocumentMeta
}

// Cause is a fundraising campaign.
type Cause struct {
	DocumentMeta
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"required"`
	Category     string  `json:"category,omitempty" validate:"max=100"`
	GoalAmount   float64 `json:"goal_amount" validate:"gt=0"`
	RaisedAmount float64 `json:"raised_amount" validate:"gte=0"`
	Currency     string  `json:"currency" validate:"omitempty,iso4217"`
	ImageURL     string  `json:"image_url,omitempty" validate:"omitempty,url"`
	Active       bool    `json:"active"`
}

// ApplyDefaults sets the currency to DefaultCurrency when omitted.
func (c *Cause) ApplyDefaults() {
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
}

// Donation records a pledge or payment towards a cause. Payment capture
// happens in an external gateway; PaymentID and OrderID carry its references.
type Donation struct {
	DocumentMeta
	CauseID   string  `json:"cause_id,omitempty"`
	DonorName string  `json:"donor_name" validate:"required,max=200"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     string  `json:"phone,omitempty" validate:"max=32"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Currency  string  `json:"currency" validate:"omitempty,iso4217"`
	Message   string  `json:"message,omitempty" validate:"max=2000"`
	PaymentID string  `json:"payment_id,omitempty"`
	OrderID   string  `json:"order_id,omitempty"`
	Status    string  `json:"status" validate:"omitempty,oneof=pending completed failed"`
	Anonymous bool    `json:"anonymous"`
}

// ApplyDefaults fills in the currency and records a new donation as pending.
func (d *Donation) ApplyDefaults() {
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	if d.Status == "" {
		d.Status = DonationPending
	}
}

// Event is a scheduled fundraiser or volunteering event.
type Event struct {
	DocumentMeta
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required"`
	Location    string     `json:"location" validate:"required,max=300"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	ImageURL    string     `json:"image_url,omitempty" validate:"omitempty,url"`
}

// Check rejects an event that ends before it starts.
func (e *Event) Check() error {
	if e.EndsAt != nil && e.EndsAt.Before(e.StartsAt) {
		return &ValidationError{Fields: map[string]string{"ends_at": "must not be before starts_at"}}
	}
	return nil
}

// Blog is a news or story post.
type Blog struct {
	DocumentMeta
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required"`
	Author   string   `json:"author" validate:"required,max=200"`
	ImageURL string   `json:"image_url,omitempty" validate:"omitempty,url"`
	Tags     []string `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

// Volunteer is a volunteer sign-up submitted from the public site.
type Volunteer struct {
	DocumentMeta
	Name         string   `json:"name" validate:"required,max=200"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone,omitempty" validate:"max=32"`
	Interests    []string `json:"interests,omitempty" validate:"max=20,dive,max=100"`
	Availability string   `json:"availability,omitempty" validate:"max=200"`
	Message      string   `json:"message,omitempty" validate:"max=2000"`
	Status       string   `json:"status" validate:"omitempty,oneof=new contacted active inactive"`
}

// ApplyDefaults marks a new sign-up as "new".
func (v *Volunteer) ApplyDefaults() {
	if v.Status == "" {
		v.Status = "new"
	}
}

// Contact is a message sent through the public contact form.
type Contact struct {
	DocumentMeta
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject,omitempty" validate:"max=300"`
	Message string `json:"message" validate:"required,max=5000"`
}

// DefaultCurrency is applied to causes and donations that omit a currency.
const DefaultCurrency = "INR"

// ErrUnknownCollection is returned for collection names outside Collections.
var ErrUnknownCollection = errors.New("unknown collection")

// NewDocument returns an empty document of the type stored in collection.
func NewDocument(collection string) (Document, error) {
	switch collection {
	case CollectionCauses:
		return &Cause{}, nil
	case CollectionDonations:
		return &Donation{}, nil
	case CollectionEvents:
		return &Event{}, nil
	case CollectionBlogs:
		return &Blog{}, nil
	case CollectionVolunteers:
		return &Volunteer{}, nil
	case CollectionContacts:
		return &Contact{}, nil
	}
	return nil, ErrUnknownCollection
}
