package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/metrics"
)

// BookingExpirationService handles background expiration of stale pending
// bookings. A booking that sits pending past the expiry window was
// abandoned at checkout; sweeping it to cancelled keeps the books tidy.
// Pending bookings hold no rooms, so expiry frees nothing, it only closes
// the record.
type BookingExpirationService struct {
	bookingRepo *database.BookingRepository
	logger      *logrus.Logger
	stopCh      chan struct{}
	interval    time.Duration
	maxAge      time.Duration
}

// sweepBatchSize caps how many stale bookings one pass will touch.
const sweepBatchSize = 100

func NewBookingExpirationService(
	bookingRepo *database.BookingRepository,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingExpirationService {
	return &BookingExpirationService{
		bookingRepo: bookingRepo,
		logger:      logger,
		stopCh:      make(chan struct{}),
		interval:    cfg.SweepInterval,
		maxAge:      time.Duration(cfg.PendingExpiryMinutes) * time.Minute,
	}
}

// Start launches the sweep loop in the background.
func (s *BookingExpirationService) Start() {
	s.logger.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"max_age":  s.maxAge.String(),
	}).Info("Expiration sweep started")
	go s.run()
}

// Stop signals the sweep loop to exit after its current pass.
func (s *BookingExpirationService) Stop() {
	close(s.stopCh)
}

func (s *BookingExpirationService) run() {
	// First pass right away; a restart should not wait a full interval.
	s.processStaleBookings()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processStaleBookings()
		case <-s.stopCh:
			s.logger.Info("Expiration sweep stopped")
			return
		}
	}
}

// processStaleBookings expires one batch of pending bookings past their
// window.
func (s *BookingExpirationService) processStaleBookings() int {
	cutoff := time.Now().Add(-s.maxAge)

	staleIDs, err := s.bookingRepo.GetStalePendingIDs(cutoff, sweepBatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get stale pending bookings")
		return 0
	}
	if len(staleIDs) == 0 {
		return 0
	}

	s.logger.WithField("count", len(staleIDs)).Info("Processing stale pending bookings")

	expired := 0
	for _, bookingID := range staleIDs {
		changed, err := s.bookingRepo.ExpirePending(bookingID)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to expire booking")
			continue
		}
		if !changed {
			// Confirmed or cancelled between the scan and the update
			continue
		}

		metrics.BookingsCancelled.WithLabelValues("expired").Inc()
		expired++
		s.logger.WithField("booking_id", bookingID).Info("Stale pending booking expired")
	}

	return expired
}

// RunOnce performs a single sweep and reports how many bookings it
// expired. The expire-bookings maintenance command drives this.
func (s *BookingExpirationService) RunOnce() int {
	return s.processStaleBookings()
}
