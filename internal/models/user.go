package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the identity store this service reads. Accounts are
// provisioned and authenticated elsewhere; here a user is an owner of
// bookings and reviews plus an admin flag for policy checks.
type User struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Name    string    `json:"name" db:"name"`
	Email   string    `json:"email" db:"email"`
	Phone   *string   `json:"phone,omitempty" db:"phone"`
	IsAdmin bool      `json:"is_admin" db:"is_admin"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
