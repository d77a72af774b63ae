package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Hotel represents a hotel listing (hotels table). The catalog itself is
// maintained elsewhere; this service reads price and room counts and writes
// back only the derived average rating.
type Hotel struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	City          *string   `json:"city,omitempty" db:"city"`
	OwnerID       uuid.UUID `json:"owner_id" db:"owner_id"`
	PricePerNight float64   `json:"price_per_night" db:"price_per_night"`
	TotalRooms    int       `json:"total_rooms" db:"total_rooms"`

	Amenities pq.StringArray `json:"amenities,omitempty" db:"amenities"`

	// Derived from the review set; recomputed on every review change
	AverageRating float64 `json:"average_rating" db:"average_rating"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
