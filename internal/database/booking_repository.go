package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/stayhaven/booking-backend/internal/models"
)

// bookingColumns is the SELECT shape scanBooking expects.
const bookingColumns = `id, user_id, hotel_id,
	check_in_date, check_out_date, number_of_rooms, nights,
	price_per_night, total_price, currency,
	status, payment_status, payment_intent_id, contact_phone,
	confirmed_at, cancelled_at, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// BookingRepository persists bookings and their guarded status
// transitions. Every transition is a conditional UPDATE whose WHERE
// clause encodes the legal source states, so concurrent writers settle
// inside the database rather than in Go.
type BookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking and reads back the timestamps the database
// assigned.
func (r *BookingRepository) Create(booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	query := `
		INSERT INTO bookings (
			id, user_id, hotel_id,
			check_in_date, check_out_date, number_of_rooms, nights,
			price_per_night, total_price, currency,
			status, payment_status, contact_phone
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRow(
		query,
		booking.ID, booking.UserID, booking.HotelID,
		booking.CheckInDate, booking.CheckOutDate, booking.NumberOfRooms, booking.Nights,
		booking.PricePerNight, booking.TotalPrice, booking.Currency,
		booking.Status, booking.PaymentStatus, booking.ContactPhone,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// GetByID loads one booking.
func (r *BookingRepository) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := r.scanBooking(r.db.QueryRow(query, bookingID))
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	return booking, err
}

// GetByUserID lists a user's bookings, newest first.
func (r *BookingRepository) GetByUserID(userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}
	return bookings, rows.Err()
}

// CountCommittedRooms sums rooms held by confirmed bookings that overlap
// the requested stay. Two stays overlap when the existing booking starts
// on or before the requested check-out AND ends on or after the requested
// check-in. Pending bookings reserve nothing.
func (r *BookingRepository) CountCommittedRooms(hotelID uuid.UUID, checkIn, checkOut time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(number_of_rooms), 0)
		FROM bookings
		WHERE hotel_id = $1
		  AND status = 'confirmed'
		  AND check_in_date <= $3
		  AND check_out_date >= $2
	`

	var committed int
	err := r.db.QueryRow(query, hotelID, checkIn, checkOut).Scan(&committed)
	return committed, err
}

// update runs a guarded UPDATE and reports whether it moved a row.
func (r *BookingRepository) update(query string, args ...any) (bool, error) {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetPaymentIntent records the gateway intent id on a booking.
func (r *BookingRepository) SetPaymentIntent(bookingID uuid.UUID, intentID string) error {
	touched, err := r.update(`
		UPDATE bookings
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1
	`, bookingID, intentID)
	if err != nil {
		return err
	}
	if !touched {
		return models.ErrBookingNotFound
	}
	return nil
}

// Confirm transitions a pending booking to confirmed with payment completed.
// Returns false without error if the booking was not pending, which makes
// repeated confirmations harmless.
func (r *BookingRepository) Confirm(bookingID uuid.UUID) (bool, error) {
	return r.update(`
		UPDATE bookings
		SET status = 'confirmed',
			payment_status = 'completed',
			confirmed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, bookingID)
}

// MarkPaymentFailed records a failed charge on a still-pending booking.
// A completed payment is left alone; a late failure event must not
// unseat it.
func (r *BookingRepository) MarkPaymentFailed(bookingID uuid.UUID) (bool, error) {
	return r.update(`
		UPDATE bookings
		SET payment_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_status != 'completed'
	`, bookingID)
}

// Cancel transitions a booking to cancelled. Returns false if the booking
// was already cancelled, so concurrent cancellations settle on one winner.
func (r *BookingRepository) Cancel(bookingID uuid.UUID) (bool, error) {
	return r.update(`
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`, bookingID)
}

// GetStalePendingIDs lists pending bookings whose payment never completed
// before the cutoff. The limit caps one sweep batch.
func (r *BookingRepository) GetStalePendingIDs(cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM bookings
		WHERE status = 'pending'
		  AND payment_status != 'completed'
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Query(query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpirePending cancels a stale pending booking. The status guard keeps a
// booking that confirmed while the sweep ran out of reach.
func (r *BookingRepository) ExpirePending(bookingID uuid.UUID) (bool, error) {
	return r.update(`
		UPDATE bookings
		SET status = 'cancelled',
			payment_status = 'failed',
			cancelled_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_status != 'completed'
	`, bookingID)
}

// HasCompletedStay reports whether the user has at least one confirmed,
// paid booking at the hotel. Review eligibility hangs off this.
func (r *BookingRepository) HasCompletedStay(userID, hotelID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE user_id = $1
			  AND hotel_id = $2
			  AND status = 'confirmed'
			  AND payment_status = 'completed'
		)
	`

	var eligible bool
	err := r.db.QueryRow(query, userID, hotelID).Scan(&eligible)
	return eligible, err
}

// scanBooking maps one row onto a Booking, flattening nullable columns
// to pointers.
func (r *BookingRepository) scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		booking   models.Booking
		intentID  sql.NullString
		phone     sql.NullString
		confirmed sql.NullTime
		cancelled sql.NullTime
	)

	err := row.Scan(
		&booking.ID, &booking.UserID, &booking.HotelID,
		&booking.CheckInDate, &booking.CheckOutDate, &booking.NumberOfRooms, &booking.Nights,
		&booking.PricePerNight, &booking.TotalPrice, &booking.Currency,
		&booking.Status, &booking.PaymentStatus, &intentID, &phone,
		&confirmed, &cancelled, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if intentID.Valid {
		booking.PaymentIntentID = &intentID.String
	}
	if phone.Valid {
		booking.ContactPhone = &phone.String
	}
	if confirmed.Valid {
		booking.ConfirmedAt = &confirmed.Time
	}
	if cancelled.Valid {
		booking.CancelledAt = &cancelled.Time
	}
	return &booking, nil
}
