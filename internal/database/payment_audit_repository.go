package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stayhaven/booking-backend/internal/models"
)

// auditColumns keeps the INSERT and the SELECTs scanning the same shape.
const auditColumns = `id, booking_id, intent_id, event_type, event_source,
	expected_amount, received_amount, currency, amounts_match,
	raw_body, details, error_message, is_duplicate,
	ip_address, user_agent, created_at`

// PaymentAuditRepository owns the payment_audits table. Writes are
// append-only; nothing in the codebase updates or deletes individual
// rows, only the retention purge removes them in bulk.
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db, logger: logger}
}

// Log appends one audit row. A failure here means the reconciliation
// trail has a hole, so it is logged at error level even when the caller
// ignores the returned error.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("nil audit entry")
	}

	// Backfill for hand-built entries; NewPaymentAudit sets both.
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `INSERT INTO payment_audits (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.IntentID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.RawBody, audit.Details, audit.ErrorMessage, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"intent_id":  audit.IntentID,
		}).Error("Payment audit write failed, reconciliation trail is missing this event")
		return fmt.Errorf("failed to write payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"intent_id":  audit.IntentID,
	}).Debug("Payment audit logged")

	return nil
}

func (r *PaymentAuditRepository) list(ctx context.Context, query string, args ...any) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	if err := r.db.SelectContext(ctx, &audits, query, args...); err != nil {
		return nil, err
	}
	return audits, nil
}

// GetByBookingID returns the full event history of one booking, oldest
// first, the order support reads it in.
func (r *PaymentAuditRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	audits, err := r.list(ctx,
		`SELECT `+auditColumns+` FROM payment_audits WHERE booking_id = $1 ORDER BY created_at ASC`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits for booking: %w", err)
	}
	return audits, nil
}

// GetByIntentID returns every event that referenced a gateway intent,
// including ones that never matched a booking.
func (r *PaymentAuditRepository) GetByIntentID(ctx context.Context, intentID string) ([]*models.PaymentAudit, error) {
	audits, err := r.list(ctx,
		`SELECT `+auditColumns+` FROM payment_audits WHERE intent_id = $1 ORDER BY created_at ASC`,
		intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits for intent: %w", err)
	}
	return audits, nil
}

// GetAmountMismatches lists events where the gateway charged something
// other than the booking total, newest first. This feeds the fraud
// review endpoint.
func (r *PaymentAuditRepository) GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	audits, err := r.list(ctx,
		`SELECT `+auditColumns+` FROM payment_audits WHERE amounts_match = FALSE ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list amount mismatches: %w", err)
	}
	return audits, nil
}

// GetRecentByEventType lists events of one type inside the last N hours.
func (r *PaymentAuditRepository) GetRecentByEventType(ctx context.Context, eventType models.PaymentEventType, hours int, limit int) ([]*models.PaymentAudit, error) {
	audits, err := r.list(ctx,
		`SELECT `+auditColumns+` FROM payment_audits
		WHERE event_type = $1 AND created_at > NOW() - INTERVAL '1 hour' * $2
		ORDER BY created_at DESC LIMIT $3`,
		eventType, hours, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent audit events: %w", err)
	}
	return audits, nil
}

// DeleteOlderThan purges audit rows past the retention window. Amount
// mismatches are kept regardless of age.
func (r *PaymentAuditRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM payment_audits
		WHERE created_at < $1
		  AND (amounts_match IS NULL OR amounts_match = TRUE)`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audits: %w", err)
	}

	return result.RowsAffected()
}
