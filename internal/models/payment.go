package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the state of a single payment attempt
// Matches PostgreSQL ENUM: payment_status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one payment attempt against a booking (payments table).
// A booking may accumulate several attempts (retried payment page loads);
// at most one row reaches succeeded, guarded by the intent-matched
// conditional transition in the repository.
type Payment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BookingID uuid.UUID `json:"booking_id" db:"booking_id"`

	// External processor intent reference for this attempt
	IntentID string `json:"intent_id" db:"intent_id"`

	Amount   float64 `json:"amount" db:"amount"`
	Currency string  `json:"currency" db:"currency"`
	Attempt  int     `json:"attempt" db:"attempt"`

	Status PaymentStatus `json:"status" db:"status"`

	SucceededAt *time.Time `json:"succeeded_at,omitempty" db:"succeeded_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// GATEWAY WIRE TYPES
// ============================================================================

// Gateway event types delivered on the webhook
const (
	GatewayEventPaymentSucceeded = "payment.succeeded"
	GatewayEventPaymentFailed    = "payment.failed"
)

// GatewayEventMetadata carries the correlation data we attach at intent
// creation and get echoed back on every event
type GatewayEventMetadata struct {
	BookingID string `json:"booking_id"`
}

// GatewayEvent is the parsed webhook payload from the payment processor
type GatewayEvent struct {
	EventID     string               `json:"event_id"`
	Type        string               `json:"type"`
	IntentID    string               `json:"intent_id"`
	AmountMinor int64                `json:"amount"` // minor currency units
	Currency    string               `json:"currency"`
	Metadata    GatewayEventMetadata `json:"metadata"`
	CreatedAt   int64                `json:"created_at"` // unix seconds
}

// IsPaymentSuccess reports whether the event confirms a completed charge
func (e *GatewayEvent) IsPaymentSuccess() bool {
	return e.Type == GatewayEventPaymentSucceeded
}

// Gateway intent statuses reported by the processor
const (
	GatewayIntentPending   = "pending"
	GatewayIntentSucceeded = "succeeded"
	GatewayIntentFailed    = "failed"
)

// GatewayIntent is the processor's view of a payment intent, returned by
// both intent creation and status checks
type GatewayIntent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
	AmountMinor  int64  `json:"amount"` // minor currency units
	Currency     string `json:"currency"`
}

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

// PaymentIntentResponse is returned when a payment intent is created
type PaymentIntentResponse struct {
	BookingID    uuid.UUID `json:"booking_id"`
	IntentID     string    `json:"intent_id"`
	ClientSecret string    `json:"client_secret"`
	Amount       float64   `json:"amount"`
	AmountMinor  int64     `json:"amount_minor"`
	Currency     string    `json:"currency"`
	Attempt      int       `json:"attempt"`
}

// ConfirmPaymentResponse is returned by the client-redirect fallback path
type ConfirmPaymentResponse struct {
	BookingID     uuid.UUID            `json:"booking_id"`
	Status        BookingStatus        `json:"status"`
	PaymentStatus BookingPaymentStatus `json:"payment_status"`
}

// MinorUnits converts a major-unit amount to minor currency units (cents).
// Rounds to the nearest unit to absorb float noise from price arithmetic.
func MinorUnits(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
