package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// AuditDetails lands in a jsonb column. Marshalled to text on the way
// out so rows survive transaction-mode poolers forcing the simple
// protocol.
type AuditDetails map[string]any

func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (d *AuditDetails) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into AuditDetails", src)
	}
}

// PaymentEventType classifies what happened during reconciliation.
type PaymentEventType string

const (
	PaymentEventIntentCreated     PaymentEventType = "intent_created"
	PaymentEventWebhookReceived   PaymentEventType = "webhook_received"
	PaymentEventWebhookRejected   PaymentEventType = "webhook_rejected" // signature verification failed
	PaymentEventFallbackCheck     PaymentEventType = "fallback_check"   // client-redirect status poll
	PaymentEventPaymentSucceeded  PaymentEventType = "payment_succeeded"
	PaymentEventPaymentFailed     PaymentEventType = "payment_failed"
	PaymentEventBookingConfirmed  PaymentEventType = "booking_confirmed"
	PaymentEventUnmatchedIntent   PaymentEventType = "unmatched_intent"   // no Payment row for the intent id
	PaymentEventAmountMismatch    PaymentEventType = "amount_mismatch"    // gateway amount != expected
	PaymentEventCancelledConflict PaymentEventType = "cancelled_conflict" // success arrived for a cancelled booking
	PaymentEventError             PaymentEventType = "error"
)

// PaymentEventSource names the channel an event arrived through.
type PaymentEventSource string

const (
	PaymentSourceWebhook PaymentEventSource = "gateway_webhook"
	PaymentSourceAPI     PaymentEventSource = "gateway_api"
	PaymentSourceUser    PaymentEventSource = "user"
	PaymentSourceSystem  PaymentEventSource = "system"
)

// PaymentAudit is one reconciliation record (payment_audits table).
// Rows are written once and never updated; disputes get decided off
// this trail, so a spurious extra row beats a missing one.
type PaymentAudit struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	BookingID *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	IntentID  *string    `json:"intent_id,omitempty" db:"intent_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// What the gateway says it charged versus what the booking costs.
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	// Payload as delivered, captured before parsing had a chance to fail.
	RawBody *string      `json:"raw_body,omitempty" db:"raw_body"`
	Details AuditDetails `json:"details,omitempty" db:"details"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	IsDuplicate  bool    `json:"is_duplicate" db:"is_duplicate"`

	// Where the triggering request came from.
	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewPaymentAudit(event PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{ID: uuid.New(), EventType: event, EventSource: source, CreatedAt: time.Now()}
}

// ForBooking ties the event to a booking.
func (a *PaymentAudit) ForBooking(bookingID uuid.UUID) *PaymentAudit {
	a.BookingID = &bookingID
	return a
}

// ForIntent ties the event to a gateway payment intent.
func (a *PaymentAudit) ForIntent(intentID string) *PaymentAudit {
	a.IntentID = &intentID
	return a
}

// FromRequest records where the triggering HTTP request came from.
// Blank values stay NULL so internally generated events carry no fake
// origin.
func (a *PaymentAudit) FromRequest(ip, userAgent string) *PaymentAudit {
	if ip != "" {
		a.IPAddress = &ip
	}
	if userAgent != "" {
		a.UserAgent = &userAgent
	}
	return a
}

// WithPayload keeps the body exactly as delivered.
func (a *PaymentAudit) WithPayload(body string) *PaymentAudit {
	a.RawBody = &body
	return a
}

// WithDetails attaches structured context to the event.
func (a *PaymentAudit) WithDetails(details AuditDetails) *PaymentAudit {
	a.Details = details
	return a
}

// WithError records why the event went wrong.
func (a *PaymentAudit) WithError(message string) *PaymentAudit {
	a.ErrorMessage = &message
	return a
}

// AsDuplicate flags a redelivery of an already processed event.
func (a *PaymentAudit) AsDuplicate() *PaymentAudit {
	a.IsDuplicate = true
	return a
}

// VerifyAmounts records both sides of the charge and reports whether
// they agree. Amounts carry two decimal places; a difference of a cent
// or more is a mismatch.
func (a *PaymentAudit) VerifyAmounts(expected, received float64, currency string) bool {
	a.ExpectedAmount = &expected
	a.ReceivedAmount = &received
	a.Currency = &currency

	match := math.Abs(expected-received) < 0.01
	a.AmountsMatch = &match
	return match
}
