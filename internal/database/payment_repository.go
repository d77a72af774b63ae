package database

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/stayhaven/booking-backend/internal/models"
)

// PaymentRepository handles database operations for payment attempt rows.
// Every gateway intent gets its own row; retries never overwrite earlier
// attempts.
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment attempt. The attempt number is assigned
// inside the statement so concurrent retries still number sequentially.
func (r *PaymentRepository) Create(payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, booking_id, intent_id, amount, currency, attempt, status
		) VALUES (
			$1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(attempt), 0) + 1 FROM payments WHERE booking_id = $2),
			$6
		)
		RETURNING attempt, created_at, updated_at
	`

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}

	return r.db.QueryRow(
		query,
		payment.ID, payment.BookingID, payment.IntentID,
		payment.Amount, payment.Currency, payment.Status,
	).Scan(&payment.Attempt, &payment.CreatedAt, &payment.UpdatedAt)
}

// GetByIntentID retrieves a payment attempt by its gateway intent id
func (r *PaymentRepository) GetByIntentID(intentID string) (*models.Payment, error) {
	query := `
		SELECT id, booking_id, intent_id, amount, currency, attempt, status,
			   succeeded_at, created_at, updated_at
		FROM payments
		WHERE intent_id = $1
	`

	payment := &models.Payment{}
	var succeededAt sql.NullTime

	err := r.db.QueryRow(query, intentID).Scan(
		&payment.ID, &payment.BookingID, &payment.IntentID,
		&payment.Amount, &payment.Currency, &payment.Attempt, &payment.Status,
		&succeededAt, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	if succeededAt.Valid {
		payment.SucceededAt = &succeededAt.Time
	}

	return payment, nil
}

// GetByBookingID retrieves all payment attempts for a booking, oldest first
func (r *PaymentRepository) GetByBookingID(bookingID uuid.UUID) ([]models.Payment, error) {
	query := `
		SELECT id, booking_id, intent_id, amount, currency, attempt, status,
			   succeeded_at, created_at, updated_at
		FROM payments
		WHERE booking_id = $1
		ORDER BY attempt
	`

	rows, err := r.db.Query(query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var payment models.Payment
		var succeededAt sql.NullTime

		err := rows.Scan(
			&payment.ID, &payment.BookingID, &payment.IntentID,
			&payment.Amount, &payment.Currency, &payment.Attempt, &payment.Status,
			&succeededAt, &payment.CreatedAt, &payment.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if succeededAt.Valid {
			payment.SucceededAt = &succeededAt.Time
		}

		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// MarkSucceeded transitions a pending payment attempt to succeeded.
// Returns false without error when the attempt already left pending or
// another attempt for the same booking already succeeded, so a booking
// can never carry two successful payments.
func (r *PaymentRepository) MarkSucceeded(intentID string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'succeeded', succeeded_at = NOW(), updated_at = NOW()
		WHERE intent_id = $1
		  AND status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM payments other
			WHERE other.booking_id = payments.booking_id
			  AND other.status = 'succeeded'
		  )
	`

	result, err := r.db.Exec(query, intentID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// MarkFailed transitions a pending payment attempt to failed
func (r *PaymentRepository) MarkFailed(intentID string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'failed', updated_at = NOW()
		WHERE intent_id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(query, intentID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}
