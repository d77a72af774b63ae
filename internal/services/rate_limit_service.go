package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stayhaven/booking-backend/internal/database"
)

// Sliding-window rate limiting for booking creation, backed by the
// booking_rate_limits table. Counts survive restarts and are shared
// across instances.

// RateLimitConfig bounds booking creations per account and per address.
type RateLimitConfig struct {
	MaxUserRequests int
	UserWindow      time.Duration
	MaxIPRequests   int
	IPWindow        time.Duration
}

// DefaultRateLimitConfig allows 10 bookings per account and 30 per IP
// address per hour. The IP bound is looser because offices and carrier
// NAT put many guests behind one address.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxUserRequests: 10,
		UserWindow:      time.Hour,
		MaxIPRequests:   30,
		IPWindow:        time.Hour,
	}
}

// RateLimitError reports an exhausted window and when it reopens.
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "user" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type RateLimitService struct {
	db     database.DB
	config RateLimitConfig
}

func NewRateLimitService(db database.DB) *RateLimitService {
	return &RateLimitService{db: db, config: DefaultRateLimitConfig()}
}

// NewRateLimitServiceWithConfig overrides the default booking limits.
func NewRateLimitServiceWithConfig(db database.DB, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{db: db, config: config}
}

// CheckBookingRateLimit reports whether userID or ip has used up its
// booking window. Blank identifiers are skipped, so callers check
// whichever dimensions they have.
func (s *RateLimitService) CheckBookingRateLimit(userID, ip string) error {
	scopes := []struct {
		identifier string
		kind       string
		limit      int
		window     time.Duration
		message    string
	}{
		{userID, "user", s.config.MaxUserRequests, s.config.UserWindow,
			"Too many booking requests for this account. Please try again after %s"},
		{ip, "ip", s.config.MaxIPRequests, s.config.IPWindow,
			"Too many booking requests from this IP address. Please try again after %s"},
	}

	for _, scope := range scopes {
		if scope.identifier == "" {
			continue
		}

		count, newest, err := s.windowUsage(scope.identifier, scope.kind, scope.window)
		if err != nil {
			return fmt.Errorf("failed to check %s rate limit: %w", scope.kind, err)
		}

		if count >= scope.limit {
			retryAfter := newest.Add(scope.window)
			return &RateLimitError{
				Message:    fmt.Sprintf(scope.message, retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       scope.kind,
			}
		}
	}

	return nil
}

// windowUsage counts requests by one identifier inside the window and
// returns the newest request time, which anchors the retry hint.
func (s *RateLimitService) windowUsage(identifier, kind string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM booking_rate_limits
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var count int
	var newest time.Time
	err := s.db.QueryRow(query, identifier, kind, time.Now().Add(-window)).Scan(&count, &newest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}
	return count, newest, nil
}

// RecordBookingRequest appends one row per known identifier. It runs
// after a booking is accepted, so a rejected create burns no budget.
func (s *RateLimitService) RecordBookingRequest(userID, ip string) error {
	const query = `
		INSERT INTO booking_rate_limits (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())
	`

	for _, scope := range []struct{ identifier, kind string }{{userID, "user"}, {ip, "ip"}} {
		if scope.identifier == "" {
			continue
		}
		if _, err := s.db.Exec(query, scope.identifier, scope.kind); err != nil {
			return fmt.Errorf("failed to record %s request: %w", scope.kind, err)
		}
	}

	return nil
}

// CleanupExpiredRateLimits drops rows too old to influence any window.
// The nightly cron calls this to keep the table small.
func (s *RateLimitService) CleanupExpiredRateLimits() (int64, error) {
	maxWindow := s.config.UserWindow
	if s.config.IPWindow > maxWindow {
		maxWindow = s.config.IPWindow
	}

	result, err := s.db.Exec(`DELETE FROM booking_rate_limits WHERE created_at < $1`,
		time.Now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}
	return result.RowsAffected()
}
