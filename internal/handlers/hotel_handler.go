package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/database"
)

// HotelHandler serves the public hotel catalog. Reads go straight to
// the repository; there is no service layer to cross for plain lookups.
type HotelHandler struct {
	hotelRepo *database.HotelRepository
	logger    *logrus.Logger
}

func NewHotelHandler(hotelRepo *database.HotelRepository, logger *logrus.Logger) *HotelHandler {
	return &HotelHandler{
		hotelRepo: hotelRepo,
		logger:    logger,
	}
}

// ListHotels handles GET /api/v1/hotels
// @Summary List hotels
// @Description List hotels, optionally filtered by city
// @Tags Hotels
// @Produce json
// @Param city query string false "Filter by city"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page start" default(0)
// @Success 200 {object} map[string]interface{} "Hotels"
// @Router /api/v1/hotels [get]
func (h *HotelHandler) ListHotels(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var city *string
	if cityStr := c.Query("city"); cityStr != "" {
		city = &cityStr
	}

	hotels, err := h.hotelRepo.List(city, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list hotels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve hotels",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hotels": hotels,
		"count":  len(hotels),
		"limit":  limit,
		"offset": offset,
	})
}

// GetHotel handles GET /api/v1/hotels/:id
// @Summary Fetch a hotel
// @Description Hotel details including the aggregated rating
// @Tags Hotels
// @Produce json
// @Param id path string true "Hotel UUID"
// @Success 200 {object} models.Hotel
// @Failure 400 {object} ErrorResponse "Invalid hotel ID"
// @Failure 404 {object} ErrorResponse "Hotel not found"
// @Router /api/v1/hotels/{id} [get]
func (h *HotelHandler) GetHotel(c *gin.Context) {
	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	hotel, err := h.hotelRepo.GetByID(hotelID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, hotel)
}
