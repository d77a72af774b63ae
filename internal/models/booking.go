package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Created, awaiting payment confirmation
	BookingStatusConfirmed BookingStatus = "confirmed" // Payment reconciled, inventory committed
	BookingStatusCancelled BookingStatus = "cancelled" // Terminal; by user, expiry, or failed payment
)

// BookingPaymentStatus represents the payment state tracked on the booking row
// Matches PostgreSQL ENUM: booking_payment_status
type BookingPaymentStatus string

const (
	BookingPaymentPending   BookingPaymentStatus = "pending"
	BookingPaymentCompleted BookingPaymentStatus = "completed"
	BookingPaymentFailed    BookingPaymentStatus = "failed"
)

// Booking represents a room reservation (bookings table)
type Booking struct {
	ID      uuid.UUID `json:"id" db:"id"`
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	HotelID uuid.UUID `json:"hotel_id" db:"hotel_id"`

	// Stay interval; overlap against another booking uses
	// checkIn <= other.checkOut AND checkOut >= other.checkIn
	CheckInDate  time.Time `json:"check_in_date" db:"check_in_date"`
	CheckOutDate time.Time `json:"check_out_date" db:"check_out_date"`

	NumberOfRooms int `json:"number_of_rooms" db:"number_of_rooms"`
	Nights        int `json:"nights" db:"nights"`

	// Pricing snapshot taken at validation time; later hotel price changes
	// do not touch existing bookings
	PricePerNight float64 `json:"price_per_night" db:"price_per_night"`
	TotalPrice    float64 `json:"total_price" db:"total_price"`
	Currency      string  `json:"currency" db:"currency"`

	Status        BookingStatus        `json:"status" db:"status"`
	PaymentStatus BookingPaymentStatus `json:"payment_status" db:"payment_status"`

	// Latest external payment intent reference; earlier attempts remain
	// correlated through their Payment rows
	PaymentIntentID *string `json:"payment_intent_id,omitempty" db:"payment_intent_id"`

	ContactPhone *string `json:"contact_phone,omitempty" db:"contact_phone"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsCancelled checks if the booking has reached its terminal state
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// IsConfirmed checks if the booking is confirmed and fully paid
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed && b.PaymentStatus == BookingPaymentCompleted
}

// CanInitiatePayment checks if a payment intent may be created.
// Allows repeated calls while pending (retried payment page loads).
func (b *Booking) CanInitiatePayment() bool {
	return b.Status == BookingStatusPending && b.PaymentStatus != BookingPaymentCompleted
}

// ============================================================================
// API SHAPES
// ============================================================================

// CreateBookingRequest is the request to create a booking
type CreateBookingRequest struct {
	HotelID       string  `json:"hotel_id" binding:"required,uuid"`
	CheckInDate   string  `json:"check_in_date" binding:"required"`  // "2006-01-02"
	CheckOutDate  string  `json:"check_out_date" binding:"required"` // "2006-01-02"
	NumberOfRooms int     `json:"number_of_rooms" binding:"required,min=1"`
	ContactPhone  *string `json:"contact_phone,omitempty"`
}

// BookingResponse is the public view of a booking
type BookingResponse struct {
	ID              uuid.UUID            `json:"id"`
	HotelID         uuid.UUID            `json:"hotel_id"`
	CheckInDate     string               `json:"check_in_date"`
	CheckOutDate    string               `json:"check_out_date"`
	NumberOfRooms   int                  `json:"number_of_rooms"`
	Nights          int                  `json:"nights"`
	PricePerNight   float64              `json:"price_per_night"`
	TotalPrice      float64              `json:"total_price"`
	Currency        string               `json:"currency"`
	Status          BookingStatus        `json:"status"`
	PaymentStatus   BookingPaymentStatus `json:"payment_status"`
	PaymentIntentID *string              `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// ToResponse converts a booking row to its public view
func (b *Booking) ToResponse() *BookingResponse {
	return &BookingResponse{
		ID:              b.ID,
		HotelID:         b.HotelID,
		CheckInDate:     b.CheckInDate.Format("2006-01-02"),
		CheckOutDate:    b.CheckOutDate.Format("2006-01-02"),
		NumberOfRooms:   b.NumberOfRooms,
		Nights:          b.Nights,
		PricePerNight:   b.PricePerNight,
		TotalPrice:      b.TotalPrice,
		Currency:        b.Currency,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		PaymentIntentID: b.PaymentIntentID,
		CreatedAt:       b.CreatedAt,
	}
}

// Quote is the priced result of a successful validation, before any row exists
type Quote struct {
	Nights        int     `json:"nights"`
	PricePerNight float64 `json:"price_per_night"`
	NumberOfRooms int     `json:"number_of_rooms"`
	TotalPrice    float64 `json:"total_price"`
	Currency      string  `json:"currency"`
}

// AvailabilityResponse reports room availability for a hotel and interval
type AvailabilityResponse struct {
	HotelID        uuid.UUID `json:"hotel_id"`
	CheckInDate    string    `json:"check_in_date"`
	CheckOutDate   string    `json:"check_out_date"`
	TotalRooms     int       `json:"total_rooms"`
	CommittedRooms int       `json:"committed_rooms"`
	AvailableRooms int       `json:"available_rooms"`
}
