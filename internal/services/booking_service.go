package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/metrics"
	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/pkg/validator"
)

// BookingService handles booking creation, pricing and lifecycle transitions
type BookingService struct {
	bookingRepo    *database.BookingRepository
	hotelRepo      *database.HotelRepository
	userRepo       *database.UserRepository
	availability   *AvailabilityService
	rateLimiter    *RateLimitService
	phoneValidator *validator.PhoneValidator
	config         config.BookingConfig
	logger         *logrus.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	bookingRepo *database.BookingRepository,
	hotelRepo *database.HotelRepository,
	userRepo *database.UserRepository,
	availability *AvailabilityService,
	rateLimiter *RateLimitService,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo:    bookingRepo,
		hotelRepo:      hotelRepo,
		userRepo:       userRepo,
		availability:   availability,
		rateLimiter:    rateLimiter,
		phoneValidator: validator.NewPhoneValidator(),
		config:         cfg,
		logger:         logger,
	}
}

// ============================================================================
// PRICING
// ============================================================================

// CalculateNights computes billable nights for a stay. Partial days round
// up, so a stay that spans any part of an extra day pays for it.
func CalculateNights(checkIn, checkOut time.Time) int {
	return int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
}

// Quote prices a prospective stay against the hotel's current rate
func (s *BookingService) Quote(hotelID uuid.UUID, checkIn, checkOut time.Time, rooms int) (*models.Quote, error) {
	if !checkOut.After(checkIn) {
		return nil, models.ErrInvalidDateRange
	}
	if rooms < 1 {
		return nil, models.ErrInvalidInput("number of rooms must be at least 1")
	}

	hotel, err := s.hotelRepo.GetByID(hotelID)
	if err != nil {
		return nil, err
	}

	nights := CalculateNights(checkIn, checkOut)

	return &models.Quote{
		Nights:        nights,
		PricePerNight: hotel.PricePerNight,
		NumberOfRooms: rooms,
		TotalPrice:    hotel.PricePerNight * float64(rooms) * float64(nights),
		Currency:      s.config.DefaultCurrency,
	}, nil
}

// ============================================================================
// CREATE BOOKING
// ============================================================================

// CreateBooking validates, prices and persists a new pending booking.
// The availability check happens here and only here: a pending booking
// reserves no rooms, so two requests racing past this check can both be
// accepted and later both confirm. Capacity is re-counted at read time,
// never enforced at confirm time.
func (s *BookingService) CreateBooking(
	ctx context.Context,
	userID uuid.UUID,
	req *models.CreateBookingRequest,
	clientIP string,
) (*models.BookingResponse, error) {
	// 1. Load user and apply the booking policy
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin {
		return nil, models.ErrAdminNotAllowed
	}

	// 2. Rate limit booking creation per user and per IP
	if err := s.rateLimiter.CheckBookingRateLimit(userID.String(), clientIP); err != nil {
		return nil, err
	}

	// 3. Parse and validate the stay dates
	checkIn, checkOut, err := s.parseStayDates(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		return nil, err
	}

	// 4. Resolve the contact phone: request first, profile as fallback
	contactPhone := user.Phone
	if req.ContactPhone != nil && *req.ContactPhone != "" {
		sanitized, err := s.phoneValidator.Validate(*req.ContactPhone)
		if err != nil {
			return nil, models.ErrInvalidInput(fmt.Sprintf("invalid contact phone: %v", err))
		}
		contactPhone = &sanitized
	}

	// 5. Load hotel and check room count bounds
	hotelID, err := uuid.Parse(req.HotelID)
	if err != nil {
		return nil, models.ErrInvalidInput("invalid hotel id")
	}
	hotel, err := s.hotelRepo.GetByID(hotelID)
	if err != nil {
		return nil, err
	}
	if req.NumberOfRooms < 1 {
		return nil, models.ErrInvalidInput("number of rooms must be at least 1")
	}
	if req.NumberOfRooms > s.config.MaxRoomsPerBooking {
		return nil, models.ErrInvalidInput(fmt.Sprintf("cannot book more than %d rooms at once", s.config.MaxRoomsPerBooking))
	}

	// 6. Check availability against confirmed bookings. Counted straight
	// from the database; the validator never reads the availability cache.
	committed, err := s.availability.CommittedRooms(ctx, hotelID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	available := hotel.TotalRooms - committed
	if available < 0 {
		available = 0
	}
	if req.NumberOfRooms > available {
		return nil, &models.InsufficientAvailabilityError{
			Requested: req.NumberOfRooms,
			Available: available,
		}
	}

	// 7. Price the stay, snapshotting the rate so later hotel price
	// changes never reprice an existing booking
	nights := CalculateNights(checkIn, checkOut)
	totalPrice := hotel.PricePerNight * float64(req.NumberOfRooms) * float64(nights)

	booking := &models.Booking{
		UserID:        userID,
		HotelID:       hotelID,
		CheckInDate:   checkIn,
		CheckOutDate:  checkOut,
		NumberOfRooms: req.NumberOfRooms,
		Nights:        nights,
		PricePerNight: hotel.PricePerNight,
		TotalPrice:    totalPrice,
		Currency:      s.config.DefaultCurrency,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.BookingPaymentPending,
		ContactPhone:  contactPhone,
	}

	// 8. Persist
	if err := s.bookingRepo.Create(booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	// 9. Record the request for rate limiting
	if err := s.rateLimiter.RecordBookingRequest(userID.String(), clientIP); err != nil {
		s.logger.WithError(err).Warn("Failed to record booking rate limit")
	}

	metrics.BookingsCreated.Inc()

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"user_id":     userID,
		"hotel_id":    hotelID,
		"nights":      nights,
		"rooms":       req.NumberOfRooms,
		"total_price": totalPrice,
	}).Info("Booking created")

	return booking.ToResponse(), nil
}

// parseStayDates parses and validates check-in and check-out dates
func (s *BookingService) parseStayDates(checkInStr, checkOutStr string) (time.Time, time.Time, error) {
	checkIn, err := time.Parse("2006-01-02", checkInStr)
	if err != nil {
		return time.Time{}, time.Time{}, models.ErrInvalidInput("invalid check-in date, expected YYYY-MM-DD")
	}

	checkOut, err := time.Parse("2006-01-02", checkOutStr)
	if err != nil {
		return time.Time{}, time.Time{}, models.ErrInvalidInput("invalid check-out date, expected YYYY-MM-DD")
	}

	if !checkOut.After(checkIn) {
		return time.Time{}, time.Time{}, models.ErrInvalidDateRange
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if checkIn.Before(today) {
		return time.Time{}, time.Time{}, models.ErrInvalidDateRange
	}

	return checkIn, checkOut, nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

// GetBooking retrieves a booking. Owners see their own bookings;
// admins see any booking.
func (s *BookingService) GetBooking(bookingID, userID uuid.UUID, isAdmin bool) (*models.BookingResponse, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	if booking.UserID != userID && !isAdmin {
		return nil, models.ErrUnauthorized
	}

	return booking.ToResponse(), nil
}

// ListUserBookings retrieves the user's bookings, newest first
func (s *BookingService) ListUserBookings(userID uuid.UUID, limit, offset int) ([]models.BookingResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := s.bookingRepo.GetByUserID(userID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]models.BookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, *bookings[i].ToResponse())
	}
	return responses, nil
}

// ============================================================================
// CANCELLATION
// ============================================================================

// CancelBooking cancels the user's booking if the cancellation window is
// still open. The window closes once check-in is less than the configured
// cutoff away; at exactly the cutoff it is already closed.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.BookingResponse, error) {
	// 1. Load and authorize
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, models.ErrUnauthorized
	}

	// 2. Cancelled is terminal
	if booking.IsCancelled() {
		return nil, models.ErrAlreadyCancelled
	}

	// 3. Enforce the cancellation window
	cutoff := time.Duration(s.config.CancellationCutoffDays) * 24 * time.Hour
	if !time.Now().Add(cutoff).Before(booking.CheckInDate) {
		return nil, models.ErrCancellationWindowClosed
	}

	// 4. Transition; the status guard settles concurrent cancels
	changed, err := s.bookingRepo.Cancel(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !changed {
		return nil, models.ErrAlreadyCancelled
	}

	// 5. Cancelled confirmed bookings free rooms immediately
	s.availability.InvalidateHotel(ctx, booking.HotelID)

	metrics.BookingsCancelled.WithLabelValues("user").Inc()

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"user_id":    userID,
	}).Info("Booking cancelled")

	updated, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	return updated.ToResponse(), nil
}
