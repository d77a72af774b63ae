package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/services"
)

// AvailabilityHandler handles room availability and price quote queries
type AvailabilityHandler struct {
	availabilityService *services.AvailabilityService
	bookingService      *services.BookingService
	logger              *logrus.Logger
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(
	availabilityService *services.AvailabilityService,
	bookingService *services.BookingService,
	logger *logrus.Logger,
) *AvailabilityHandler {
	return &AvailabilityHandler{
		availabilityService: availabilityService,
		bookingService:      bookingService,
		logger:              logger,
	}
}

// CheckAvailability handles GET /api/v1/hotels/:id/availability
// @Summary Check room availability
// @Description Get the number of free rooms for a hotel over a stay window
// @Tags Availability
// @Produce json
// @Param id path string true "Hotel UUID"
// @Param check_in query string true "Check-in date (YYYY-MM-DD)"
// @Param check_out query string true "Check-out date (YYYY-MM-DD)"
// @Success 200 {object} models.AvailabilityResponse
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Hotel not found"
// @Router /api/v1/hotels/{id}/availability [get]
func (h *AvailabilityHandler) CheckAvailability(c *gin.Context) {
	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	checkIn, checkOut, ok := parseStayQuery(c)
	if !ok {
		return
	}

	response, err := h.availabilityService.CheckAvailability(c.Request.Context(), hotelID, checkIn, checkOut)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetQuote handles GET /api/v1/hotels/:id/quote
// @Summary Get a price quote
// @Description Price a prospective stay without creating a booking
// @Tags Availability
// @Produce json
// @Param id path string true "Hotel UUID"
// @Param check_in query string true "Check-in date (YYYY-MM-DD)"
// @Param check_out query string true "Check-out date (YYYY-MM-DD)"
// @Param rooms query int false "Number of rooms" default(1)
// @Success 200 {object} models.Quote
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Hotel not found"
// @Router /api/v1/hotels/{id}/quote [get]
func (h *AvailabilityHandler) GetQuote(c *gin.Context) {
	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	checkIn, checkOut, ok := parseStayQuery(c)
	if !ok {
		return
	}

	rooms := 1
	if roomsStr := c.Query("rooms"); roomsStr != "" {
		parsed, err := strconv.Atoi(roomsStr)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_rooms",
				Message: "Parameter 'rooms' must be a positive integer",
				Code:    "INVALID_ROOMS",
			})
			return
		}
		rooms = parsed
	}

	quote, err := h.bookingService.Quote(hotelID, checkIn, checkOut, rooms)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// parseStayQuery reads the check_in and check_out query parameters.
// Writes the 400 response itself so callers can just return on !ok.
func parseStayQuery(c *gin.Context) (time.Time, time.Time, bool) {
	checkInStr := c.Query("check_in")
	checkOutStr := c.Query("check_out")
	if checkInStr == "" || checkOutStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_dates",
			Message: "Query parameters 'check_in' and 'check_out' are required",
			Code:    "MISSING_DATES",
		})
		return time.Time{}, time.Time{}, false
	}

	checkIn, err := time.Parse("2006-01-02", checkInStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_date",
			Message: "Invalid check_in date, expected YYYY-MM-DD",
			Code:    "INVALID_DATE",
		})
		return time.Time{}, time.Time{}, false
	}

	checkOut, err := time.Parse("2006-01-02", checkOutStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_date",
			Message: "Invalid check_out date, expected YYYY-MM-DD",
			Code:    "INVALID_DATE",
		})
		return time.Time{}, time.Time{}, false
	}

	return checkIn, checkOut, true
}
