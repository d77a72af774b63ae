package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/internal/services"
	"github.com/stayhaven/booking-backend/internal/utils"
)

// BookingHandler owns the guest-facing booking routes.
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
// @Summary Create a new booking
// @Description Validate, price and create a pending hotel booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.BookingResponse "Booking created"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 409 {object} map[string]interface{} "Not enough rooms available"
// @Failure 429 {object} map[string]interface{} "Rate limit exceeded"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	clientIP := utils.GetRealIP(c)

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), userCtx.UserID, &req, clientIP)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"hotel_id":   booking.HotelID,
		"user_id":    userCtx.UserID,
		"rooms":      booking.NumberOfRooms,
		"nights":     booking.Nights,
		"total":      booking.TotalPrice,
	}).Info("Booking created")

	c.JSON(http.StatusCreated, booking)
}

// GetBooking handles GET /api/v1/bookings/:id
// @Summary Fetch a booking
// @Description Booking details, visible to the owner and admins
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking UUID"
// @Success 200 {object} models.BookingResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the booking owner"
// @Failure 404 {object} ErrorResponse "Booking not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := pathUUID(c, "booking")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(bookingID, userCtx.UserID, userCtx.IsAdmin)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListMyBookings handles GET /api/v1/bookings
// @Summary List my bookings
// @Description List bookings for the authenticated guest, newest first
// @Tags Bookings
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page start" default(0)
// @Success 200 {object} map[string]interface{} "List of bookings"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/bookings [get]
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookingService.ListUserBookings(userCtx.UserID, limit, offset)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
// @Summary Cancel a booking
// @Description Cancel a booking; only allowed outside the cancellation cutoff window
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking UUID"
// @Success 200 {object} models.BookingResponse "Cancelled booking"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the booking owner"
// @Failure 404 {object} ErrorResponse "Booking not found"
// @Failure 409 {object} ErrorResponse "Already cancelled or window closed"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := pathUUID(c, "booking")
	if !ok {
		return
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userCtx.UserID,
	}).Info("Booking cancelled by guest")

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled successfully",
		"booking": booking,
	})
}
