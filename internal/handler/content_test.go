package handler

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kindfund/kindfund/internal/model"
)

func TestCauseCRUD(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/causes", toJSON(t, map[string]interface{}{
		"title":       "Clean water",
		"description": "Wells for villages",
		"goal_amount": 50000,
		"id":          "client-chosen",
	}))
	assertStatus(t, rr, http.StatusCreated)

	var created model.Cause
	decodeJSON(t, rr, &created)
	if created.ID == "" || created.ID == "client-chosen" {
		t.Fatalf("id should be assigned by the server, got %q", created.ID)
	}
	if created.Currency != model.DefaultCurrency {
		t.Errorf("Currency = %q, want default", created.Currency)
	}

	rr = env.do(t, "GET", "/api/v1/causes/"+created.ID, nil)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "PUT", "/api/v1/causes/"+created.ID, toJSON(t, map[string]interface{}{
		"active":     true,
		"created_at": "2000-01-01T00:00:00Z",
	}))
	assertStatus(t, rr, http.StatusOK)
	var updated model.Cause
	decodeJSON(t, rr, &updated)
	if !updated.Active || updated.Title != "Clean water" {
		t.Errorf("partial update lost fields: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed from %v to %v", created.CreatedAt, updated.CreatedAt)
	}

	rr = env.do(t, "PUT", "/api/v1/causes/"+created.ID, toJSON(t, map[string]interface{}{"goal_amount": -5}))
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "DELETE", "/api/v1/causes/"+created.ID, nil)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/v1/causes/"+created.ID, nil)
	assertStatus(t, rr, http.StatusNotFound)
	rr = env.do(t, "DELETE", "/api/v1/causes/"+created.ID, nil)
	assertStatus(t, rr, http.StatusNotFound)
	rr = env.do(t, "PUT", "/api/v1/causes/"+created.ID, toJSON(t, map[string]interface{}{"active": false}))
	assertStatus(t, rr, http.StatusNotFound)
}

func TestCreateValidationError(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/contacts", toJSON(t, map[string]interface{}{
		"name":  "Asha",
		"email": "not-an-email",
	}))
	assertStatus(t, rr, http.StatusBadRequest)

	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	fields, ok := resp.Error.Context["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected fields in error context, got %v", resp.Error.Context)
	}
	for _, f := range []string{"email", "message"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected %q in %v", f, fields)
		}
	}
}

func TestCreateRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/api/v1/blogs", strings.NewReader(`{"title":"t","content":"c","author":"a","likes":3}`))
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 30; i++ {
		env.seedCause(t, "cause "+strconv.Itoa(i))
	}

	rr := env.do(t, "GET", "/api/v1/causes", nil)
	assertStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Total-Count") != "30" {
		t.Errorf("X-Total-Count = %q, want 30", rr.Header().Get("X-Total-Count"))
	}
	var resp model.ListResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Resource) != defaultLimit || resp.Meta.Limit != defaultLimit || resp.Meta.Total != 30 {
		t.Errorf("unexpected default page: count=%d meta=%+v", len(resp.Resource), resp.Meta)
	}

	tests := []struct {
		query      string
		wantCount  int
		wantLimit  int
		wantOffset int
	}{
		{"?limit=10&offset=25", 5, 10, 25},
		{"?limit=0", 1, 1, 0},
		{"?limit=1000", 30, maxLimit, 0},
		{"?offset=-3&limit=2", 2, 2, 0},
		{"?limit=abc", defaultLimit, defaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := env.do(t, "GET", "/api/v1/causes"+tt.query, nil)
			assertStatus(t, rr, http.StatusOK)
			var resp model.ListResponse
			decodeJSON(t, rr, &resp)
			if resp.Meta.Count != tt.wantCount || resp.Meta.Limit != tt.wantLimit || resp.Meta.Offset != tt.wantOffset {
				t.Errorf("meta = %+v, want count=%d limit=%d offset=%d", resp.Meta, tt.wantCount, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestListEmptyCollection(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/events", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"resource":[]`) {
		t.Errorf("expected empty resource array, got %s", rr.Body.String())
	}
}

// donate posts a donation the way an anonymous donor would.
func (e *testEnv) donate(t *testing.T, causeID string, amount float64, extra map[string]interface{}) model.Donation {
	t.Helper()
	body := map[string]interface{}{
		"cause_id":   causeID,
		"donor_name": "Asha",
		"email":      "asha@example.org",
		"amount":     amount,
	}
	for k, v := range extra {
		body[k] = v
	}
	rr := e.do(t, "POST", "/api/v1/donations", toJSON(t, body))
	assertStatus(t, rr, http.StatusCreated)
	var d model.Donation
	decodeJSON(t, rr, &d)
	return d
}

// setDonation is the admin update; the server tests cover its gating.
func (e *testEnv) setDonation(t *testing.T, id string, fields map[string]interface{}) model.Donation {
	t.Helper()
	rr := e.do(t, "PUT", "/api/v1/donations/"+id, toJSON(t, fields))
	assertStatus(t, rr, http.StatusOK)
	var d model.Donation
	decodeJSON(t, rr, &d)
	return d
}

func TestDonationUpdatesRaisedAmount(t *testing.T) {
	env := newTestEnv(t)
	cause := env.seedCause(t, "Books")

	first := env.donate(t, cause.ID, 100, nil)
	second := env.donate(t, cause.ID, 250, nil)
	if second.Status != model.DonationPending {
		t.Errorf("default status = %q, want pending", second.Status)
	}
	if got := env.cause(t, cause.ID).RaisedAmount; got != 0 {
		t.Fatalf("raised = %v, want 0 before completion", got)
	}

	env.setDonation(t, first.ID, map[string]interface{}{"status": "completed"})
	if got := env.cause(t, cause.ID).RaisedAmount; got != 100 {
		t.Fatalf("raised = %v, want 100", got)
	}

	// pending -> completed counts once
	for i := 0; i < 2; i++ {
		env.setDonation(t, second.ID, map[string]interface{}{"status": "completed"})
	}
	if got := env.cause(t, cause.ID).RaisedAmount; got != 350 {
		t.Fatalf("raised = %v, want 350", got)
	}

	// completed -> failed reverses the contribution
	env.setDonation(t, second.ID, map[string]interface{}{"status": "failed"})
	if got := env.cause(t, cause.ID).RaisedAmount; got != 100 {
		t.Fatalf("raised = %v, want 100", got)
	}

	if got := testutil.ToFloat64(env.metrics.CounterDonations.WithLabelValues("pending")); got != 2 {
		t.Errorf("pending donation counter = %v, want 2", got)
	}
}

func TestCreateDonationCannotSelfComplete(t *testing.T) {
	env := newTestEnv(t)
	cause := env.seedCause(t, "Books")

	d := env.donate(t, cause.ID, 500, map[string]interface{}{
		"status":     "completed",
		"payment_id": "pay_forged",
		"order_id":   "order_forged",
	})
	if d.Status != model.DonationPending {
		t.Errorf("status = %q, want pending", d.Status)
	}
	if d.PaymentID != "" || d.OrderID != "" {
		t.Errorf("payment references kept: payment_id=%q order_id=%q", d.PaymentID, d.OrderID)
	}
	if got := env.cause(t, cause.ID).RaisedAmount; got != 0 {
		t.Errorf("raised = %v, want 0", got)
	}
	if got := testutil.ToFloat64(env.metrics.CounterDonations.WithLabelValues("completed")); got != 0 {
		t.Errorf("completed donation counter = %v, want 0", got)
	}
}

func TestDonationMovesBetweenCauses(t *testing.T) {
	env := newTestEnv(t)
	from := env.seedCause(t, "Books")
	to := env.seedCause(t, "Meals")

	d := env.donate(t, from.ID, 75, nil)
	env.setDonation(t, d.ID, map[string]interface{}{"status": "completed"})
	if got := env.cause(t, from.ID).RaisedAmount; got != 75 {
		t.Fatalf("raised = %v, want 75", got)
	}

	moved := env.setDonation(t, d.ID, map[string]interface{}{"cause_id": to.ID})
	if moved.CauseID != to.ID {
		t.Fatalf("cause_id = %q, want %q", moved.CauseID, to.ID)
	}
	if got := env.cause(t, from.ID).RaisedAmount; got != 0 {
		t.Errorf("old cause raised = %v, want 0", got)
	}
	if got := env.cause(t, to.ID).RaisedAmount; got != 75 {
		t.Errorf("new cause raised = %v, want 75", got)
	}

	rr := env.do(t, "PUT", "/api/v1/donations/"+d.ID, toJSON(t, map[string]interface{}{"cause_id": "missing"}))
	assertStatus(t, rr, http.StatusNotFound)
	if got := env.cause(t, to.ID).RaisedAmount; got != 75 {
		t.Errorf("raised changed by rejected move: %v", got)
	}
}

func TestUpdateDonationAfterCauseDeleted(t *testing.T) {
	env := newTestEnv(t)
	cause := env.seedCause(t, "Books")

	d := env.donate(t, cause.ID, 30, nil)
	env.setDonation(t, d.ID, map[string]interface{}{"status": "completed"})

	rr := env.do(t, "DELETE", "/api/v1/causes/"+cause.ID, nil)
	assertStatus(t, rr, http.StatusOK)

	updated := env.setDonation(t, d.ID, map[string]interface{}{"status": "failed"})
	if updated.Status != model.DonationFailed {
		t.Errorf("status = %q, want failed", updated.Status)
	}
	rr = env.do(t, "DELETE", "/api/v1/donations/"+d.ID, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestDonationUnknownCause(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/donations", toJSON(t, map[string]interface{}{
		"cause_id":   "missing",
		"donor_name": "Asha",
		"email":      "asha@example.org",
		"amount":     10,
		"status":     "completed",
	}))
	assertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "GET", "/api/v1/donations", nil)
	var resp model.ListResponse
	decodeJSON(t, rr, &resp)
	if resp.Meta.Total != 0 {
		t.Errorf("donation stored despite unknown cause")
	}
}

func TestDeleteCompletedDonation(t *testing.T) {
	env := newTestEnv(t)
	cause := env.seedCause(t, "Meals")

	d := env.donate(t, cause.ID, 40, nil)
	env.setDonation(t, d.ID, map[string]interface{}{"status": "completed"})
	if got := env.cause(t, cause.ID).RaisedAmount; got != 40 {
		t.Fatalf("raised = %v, want 40", got)
	}

	rr := env.do(t, "DELETE", "/api/v1/donations/"+d.ID, nil)
	assertStatus(t, rr, http.StatusOK)
	if got := env.cause(t, cause.ID).RaisedAmount; got != 0 {
		t.Errorf("raised = %v, want 0 after delete", got)
	}
}

func TestDonationWithoutCause(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/api/v1/donations", toJSON(t, map[string]interface{}{
		"donor_name": "Anon", "email": "anon@example.org", "amount": 5, "anonymous": true,
	}))
	assertStatus(t, rr, http.StatusCreated)
}
