package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the booking and payment flows. Handlers map these to
// HTTP statuses; services wrap them with context via fmt.Errorf("...: %w").
var (
	// ErrInvalidDateRange is returned when check-in is in the past or
	// check-out is not strictly after check-in
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrCancellationWindowClosed is returned when a cancellation arrives
	// inside the cutoff window before check-in
	ErrCancellationWindowClosed = errors.New("cancellation window has closed")

	// ErrAlreadyCancelled is returned on any transition attempt against a
	// cancelled booking; cancelled is terminal
	ErrAlreadyCancelled = errors.New("booking is already cancelled")

	// ErrInvalidSignature is returned when a webhook payload fails
	// verification; the event must be dropped, never applied
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrGatewayTimeout is returned when the payment processor does not
	// answer within the configured deadline; safe to retry
	ErrGatewayTimeout = errors.New("payment gateway timeout")

	// ErrGatewayRejected is returned when the processor answers with a
	// non-success status; not retryable without operator attention
	ErrGatewayRejected = errors.New("payment gateway rejected the request")

	// ErrUnauthorized is returned on ownership mismatches (cancel, payment
	// confirmation fallback, review edits)
	ErrUnauthorized = errors.New("not authorized for this resource")

	// ErrAdminNotAllowed is returned when an admin account attempts to book
	// or review; a policy rule, not a mechanical constraint
	ErrAdminNotAllowed = errors.New("admin accounts cannot book or review")

	// ErrDuplicateReview is returned when the author already reviewed the hotel
	ErrDuplicateReview = errors.New("hotel already reviewed by this user")

	// ErrReviewNotEligible is returned when the author has no completed,
	// paid stay at the hotel
	ErrReviewNotEligible = errors.New("no completed stay at this hotel")

	ErrHotelNotFound   = errors.New("hotel not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrUserNotFound    = errors.New("user not found")
)

// InsufficientAvailabilityError is returned when the requested room count
// exceeds what remains. It carries the actual availability so callers can
// show the user exactly how many rooms are left.
type InsufficientAvailabilityError struct {
	Requested int `json:"requested"`
	Available int `json:"available"`
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("requested %d rooms but only %d available", e.Requested, e.Available)
}

// ErrInvalidInput wraps a user-facing message in a ValidationError.
func ErrInvalidInput(message string) error {
	return &ValidationError{Message: message}
}

// ValidationError is a rejected input whose message is safe to show to
// the client verbatim. Handlers match it with errors.As and answer 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
