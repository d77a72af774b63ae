package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/internal/services"
)

// ReviewHandler owns the review and rating routes. Validation beyond
// binding lives in the rating service; the handler only translates.
type ReviewHandler struct {
	ratingService *services.RatingService
	logger        *logrus.Logger
}

func NewReviewHandler(ratingService *services.RatingService, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{
		ratingService: ratingService,
		logger:        logger,
	}
}

// CreateReview handles POST /api/v1/hotels/:id/reviews
// @Summary Create a review
// @Description Create a review for a hotel; requires a completed, paid stay
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Hotel UUID"
// @Param request body models.CreateReviewRequest true "Review"
// @Success 201 {object} models.ReviewResponse "Review created"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "No completed stay"
// @Failure 409 {object} ErrorResponse "Already reviewed"
// @Security BearerAuth
// @Router /api/v1/hotels/{id}/reviews [post]
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.ratingService.CreateReview(c.Request.Context(), userCtx.UserID, hotelID, &req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"review_id": review.ID,
		"hotel_id":  hotelID,
		"user_id":   userCtx.UserID,
		"rating":    review.Rating,
	}).Info("Review created")

	c.JSON(http.StatusCreated, review)
}

// UpdateReview handles PUT /api/v1/reviews/:id
// @Summary Update a review
// @Description Update rating or comment on an existing review; authors only
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review UUID"
// @Param request body models.UpdateReviewRequest true "Updated review"
// @Success 200 {object} models.ReviewResponse "Updated review"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the author"
// @Failure 404 {object} ErrorResponse "Review not found"
// @Security BearerAuth
// @Router /api/v1/reviews/{id} [put]
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	reviewID, ok := pathUUID(c, "review")
	if !ok {
		return
	}

	var req models.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.ratingService.UpdateReview(c.Request.Context(), reviewID, userCtx.UserID, &req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/reviews/:id
// @Summary Delete a review
// @Description Delete a review; authors only. The hotel rating is recomputed.
// @Tags Reviews
// @Produce json
// @Param id path string true "Review UUID"
// @Success 200 {object} map[string]interface{} "Review deleted"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the author"
// @Failure 404 {object} ErrorResponse "Review not found"
// @Security BearerAuth
// @Router /api/v1/reviews/{id} [delete]
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	reviewID, ok := pathUUID(c, "review")
	if !ok {
		return
	}

	if err := h.ratingService.DeleteReview(c.Request.Context(), reviewID, userCtx.UserID); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Review deleted successfully",
		"review_id": reviewID,
	})
}

// ListHotelReviews handles GET /api/v1/hotels/:id/reviews
// @Summary List hotel reviews
// @Description List reviews for a hotel, newest first
// @Tags Reviews
// @Produce json
// @Param id path string true "Hotel UUID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page start" default(0)
// @Success 200 {object} map[string]interface{} "Reviews"
// @Failure 400 {object} ErrorResponse "Invalid hotel ID"
// @Router /api/v1/hotels/{id}/reviews [get]
func (h *ReviewHandler) ListHotelReviews(c *gin.Context) {
	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reviews, err := h.ratingService.ListHotelReviews(hotelID, limit, offset)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"count":   len(reviews),
		"limit":   limit,
		"offset":  offset,
	})
}

// GetHotelRating handles GET /api/v1/hotels/:id/rating
// @Summary Get hotel rating
// @Description Get the aggregated average rating and review count for a hotel
// @Tags Reviews
// @Produce json
// @Param id path string true "Hotel UUID"
// @Success 200 {object} models.HotelRating "Aggregated rating"
// @Failure 400 {object} ErrorResponse "Invalid hotel ID"
// @Failure 404 {object} ErrorResponse "Hotel not found"
// @Router /api/v1/hotels/{id}/rating [get]
func (h *ReviewHandler) GetHotelRating(c *gin.Context) {
	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	rating, err := h.ratingService.GetHotelRating(c.Request.Context(), hotelID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, rating)
}
