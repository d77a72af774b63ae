package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a user's rating of a hotel (reviews table).
// Unique per (hotel_id, user_id); creation requires a completed, paid stay.
type Review struct {
	ID      uuid.UUID `json:"id" db:"id"`
	HotelID uuid.UUID `json:"hotel_id" db:"hotel_id"`
	UserID  uuid.UUID `json:"user_id" db:"user_id"`

	Rating  int    `json:"rating" db:"rating"` // 1..5
	Comment string `json:"comment" db:"comment"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateReviewRequest is the request to review a hotel
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// UpdateReviewRequest is the request to edit an existing review
type UpdateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// Validate checks the rating bounds
func (r *CreateReviewRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidInput("rating must be between 1 and 5")
	}
	return nil
}

// Validate checks the rating bounds
func (r *UpdateReviewRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidInput("rating must be between 1 and 5")
	}
	return nil
}

// ReviewResponse is the public view of a review
type ReviewResponse struct {
	ID        uuid.UUID `json:"id"`
	HotelID   uuid.UUID `json:"hotel_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse converts a review row to its public view
func (r *Review) ToResponse() *ReviewResponse {
	return &ReviewResponse{
		ID:        r.ID,
		HotelID:   r.HotelID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// HotelRating is the aggregate rating summary for a hotel
type HotelRating struct {
	HotelID       uuid.UUID `json:"hotel_id"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int       `json:"review_count"`
}
