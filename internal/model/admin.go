package model

import "time"

// Admin is a provisioned administrator identity. Admins are created once
// (offline via the CLI, or by another admin) and are never updated or
// deleted through the API. Passwords are stored as bcrypt hashes.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt hash, never expose
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}
