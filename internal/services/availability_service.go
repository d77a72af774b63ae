package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/cache"
	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/metrics"
	"github.com/stayhaven/booking-backend/internal/models"
)

// AvailabilityService answers how many rooms a hotel has free for a stay.
// Only confirmed bookings count against capacity; pending bookings hold
// nothing until their payment completes.
type AvailabilityService struct {
	hotelRepo   *database.HotelRepository
	bookingRepo *database.BookingRepository
	cache       *cache.Client
	cacheTTL    time.Duration
	logger      *logrus.Logger
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(
	hotelRepo *database.HotelRepository,
	bookingRepo *database.BookingRepository,
	cacheClient *cache.Client,
	cfg config.RedisConfig,
	logger *logrus.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		hotelRepo:   hotelRepo,
		bookingRepo: bookingRepo,
		cache:       cacheClient,
		cacheTTL:    cfg.AvailabilityTTL,
		logger:      logger,
	}
}

// CheckAvailability computes free rooms for the requested stay
func (s *AvailabilityService) CheckAvailability(
	ctx context.Context,
	hotelID uuid.UUID,
	checkIn, checkOut time.Time,
) (*models.AvailabilityResponse, error) {
	// 1. Validate date range
	if !checkOut.After(checkIn) {
		return nil, models.ErrInvalidDateRange
	}

	// 2. Cache lookup (short TTL, invalidated on every confirm/cancel)
	key := availabilityCacheKey(hotelID, checkIn, checkOut)
	var cached models.AvailabilityResponse
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		metrics.AvailabilityChecks.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	metrics.AvailabilityChecks.WithLabelValues("miss").Inc()

	// 3. Load hotel capacity
	hotel, err := s.hotelRepo.GetByID(hotelID)
	if err != nil {
		return nil, err
	}

	// 4. Sum rooms committed by overlapping confirmed bookings
	committed, err := s.bookingRepo.CountCommittedRooms(hotelID, checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("failed to count committed rooms: %w", err)
	}

	available := hotel.TotalRooms - committed
	if available < 0 {
		available = 0
	}

	response := &models.AvailabilityResponse{
		HotelID:        hotelID,
		CheckInDate:    checkIn.Format("2006-01-02"),
		CheckOutDate:   checkOut.Format("2006-01-02"),
		TotalRooms:     hotel.TotalRooms,
		CommittedRooms: committed,
		AvailableRooms: available,
	}

	if err := s.cache.SetJSON(ctx, key, response, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache availability")
	}

	return response, nil
}

// AvailableRooms returns just the free-room count for a stay
func (s *AvailabilityService) AvailableRooms(
	ctx context.Context,
	hotelID uuid.UUID,
	checkIn, checkOut time.Time,
) (int, error) {
	response, err := s.CheckAvailability(ctx, hotelID, checkIn, checkOut)
	if err != nil {
		return 0, err
	}
	return response.AvailableRooms, nil
}

// CommittedRooms counts rooms held by overlapping confirmed bookings,
// straight from the database. Booking validation calls this instead of
// CheckAvailability: a stale cached count must never admit a booking.
func (s *AvailabilityService) CommittedRooms(
	ctx context.Context,
	hotelID uuid.UUID,
	checkIn, checkOut time.Time,
) (int, error) {
	committed, err := s.bookingRepo.CountCommittedRooms(hotelID, checkIn, checkOut)
	if err != nil {
		return 0, fmt.Errorf("failed to count committed rooms: %w", err)
	}
	return committed, nil
}

// InvalidateHotel drops every cached availability window for a hotel.
// Called after any state change that affects committed rooms.
func (s *AvailabilityService) InvalidateHotel(ctx context.Context, hotelID uuid.UUID) {
	pattern := fmt.Sprintf("availability:%s:*", hotelID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.WithError(err).WithField("hotel_id", hotelID).Warn("Failed to invalidate availability cache")
	}
}

func availabilityCacheKey(hotelID uuid.UUID, checkIn, checkOut time.Time) string {
	return fmt.Sprintf("availability:%s:%s:%s",
		hotelID,
		checkIn.Format("2006-01-02"),
		checkOut.Format("2006-01-02"),
	)
}
