package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/internal/services"
)

// AdminHandler handles operational endpoints for admins: scheduled job
// control, payment audit queries and manual reconciliation tools.
type AdminHandler struct {
	cronService       *services.CronService
	expirationService *services.BookingExpirationService
	ratingService     *services.RatingService
	auditRepo         *database.PaymentAuditRepository
	logger            *logrus.Logger
}

func NewAdminHandler(
	cronService *services.CronService,
	expirationService *services.BookingExpirationService,
	ratingService *services.RatingService,
	auditRepo *database.PaymentAuditRepository,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		cronService:       cronService,
		expirationService: expirationService,
		ratingService:     ratingService,
		auditRepo:         auditRepo,
		logger:            logger,
	}
}

// ===================================================================
// SCHEDULED JOB CONTROL
// ===================================================================

// GetCronStatus handles GET /api/v1/admin/cron/status
// @Summary Get cron job status
// @Description Returns the state and schedule of all background jobs
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job status"
// @Security BearerAuth
// @Router /api/v1/admin/cron/status [get]
func (h *AdminHandler) GetCronStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cronService.GetJobStatus())
}

// TriggerRatingRepair handles POST /api/v1/admin/cron/rating-repair
// @Summary Trigger the rating repair job
// @Description Recompute the average rating of every hotel immediately
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job completed"
// @Failure 500 {object} ErrorResponse "Job failed"
// @Security BearerAuth
// @Router /api/v1/admin/cron/rating-repair [post]
func (h *AdminHandler) TriggerRatingRepair(c *gin.Context) {
	if err := h.cronService.RunRatingRepairNow(); err != nil {
		h.logger.WithError(err).Error("Manual rating repair failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "job_failed",
			Message: "Rating repair job failed, see server logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rating repair completed"})
}

// TriggerAuditRetention handles POST /api/v1/admin/cron/audit-retention
// @Summary Trigger the audit retention job
// @Description Prune payment audit rows older than the retention window
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job completed"
// @Failure 500 {object} ErrorResponse "Job failed"
// @Security BearerAuth
// @Router /api/v1/admin/cron/audit-retention [post]
func (h *AdminHandler) TriggerAuditRetention(c *gin.Context) {
	if err := h.cronService.RunAuditRetentionNow(); err != nil {
		h.logger.WithError(err).Error("Manual audit retention failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "job_failed",
			Message: "Audit retention job failed, see server logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Audit retention completed"})
}

// ===================================================================
// MAINTENANCE
// ===================================================================

// ExpirePendingBookings handles POST /api/v1/admin/maintenance/expire-pending
// @Summary Expire stale pending bookings now
// @Description Run one sweep of the pending-booking expiration service
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Sweep result"
// @Security BearerAuth
// @Router /api/v1/admin/maintenance/expire-pending [post]
func (h *AdminHandler) ExpirePendingBookings(c *gin.Context) {
	expired := h.expirationService.RunOnce()

	h.logger.WithField("expired", expired).Info("Manual expiration sweep completed")

	c.JSON(http.StatusOK, gin.H{
		"message": "Expiration sweep completed",
		"expired": expired,
	})
}

// RecomputeHotelRating handles POST /api/v1/admin/hotels/:id/recompute-rating
// @Summary Recompute a hotel's rating
// @Description Force a full recompute of one hotel's average rating
// @Tags Admin
// @Produce json
// @Param id path string true "Hotel UUID"
// @Success 200 {object} map[string]interface{} "New average"
// @Failure 404 {object} ErrorResponse "Hotel not found"
// @Security BearerAuth
// @Router /api/v1/admin/hotels/{id}/recompute-rating [post]
func (h *AdminHandler) RecomputeHotelRating(c *gin.Context) {
	hotelID, ok := pathUUID(c, "hotel")
	if !ok {
		return
	}

	average, err := h.ratingService.RecomputeHotelRating(c.Request.Context(), hotelID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Rating recomputed",
		"hotel_id":       hotelID,
		"average_rating": average,
	})
}

// ===================================================================
// PAYMENT AUDIT QUERIES
// ===================================================================

// GetBookingAuditTrail handles GET /api/v1/admin/audit/bookings/:id
// @Summary Get the audit trail for a booking
// @Description Every payment event recorded for a booking, oldest first
// @Tags Admin
// @Produce json
// @Param id path string true "Booking UUID"
// @Success 200 {object} map[string]interface{} "Audit events"
// @Security BearerAuth
// @Router /api/v1/admin/audit/bookings/{id} [get]
func (h *AdminHandler) GetBookingAuditTrail(c *gin.Context) {
	bookingID, ok := pathUUID(c, "booking")
	if !ok {
		return
	}

	events, err := h.auditRepo.GetByBookingID(c.Request.Context(), bookingID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load booking audit trail")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load audit trail",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID,
		"events":     events,
		"count":      len(events),
	})
}

// GetAmountMismatches handles GET /api/v1/admin/audit/mismatches
// @Summary List amount mismatches
// @Description Payments whose gateway amount disagreed with the booking total; these need manual review
// @Tags Admin
// @Produce json
// @Param limit query int false "Limit" default(50)
// @Success 200 {object} map[string]interface{} "Mismatch events"
// @Security BearerAuth
// @Router /api/v1/admin/audit/mismatches [get]
func (h *AdminHandler) GetAmountMismatches(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.auditRepo.GetAmountMismatches(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load amount mismatches")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load amount mismatches",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mismatches": events,
		"count":      len(events),
	})
}

// GetIntentAuditTrail handles GET /api/v1/admin/audit/intents/:intent_id
// @Summary Get the audit trail for a payment intent
// @Description Every event recorded for a gateway intent, including deliveries that matched no booking
// @Tags Admin
// @Produce json
// @Param intent_id path string true "Payment intent ID"
// @Success 200 {object} map[string]interface{} "Audit events"
// @Security BearerAuth
// @Router /api/v1/admin/audit/intents/{intent_id} [get]
func (h *AdminHandler) GetIntentAuditTrail(c *gin.Context) {
	intentID := c.Param("intent_id")
	if intentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_intent_id",
			Message: "Payment intent ID is required",
			Code:    "INVALID_INTENT_ID",
		})
		return
	}

	events, err := h.auditRepo.GetByIntentID(c.Request.Context(), intentID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load intent audit trail")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load audit trail",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"intent_id": intentID,
		"events":    events,
		"count":     len(events),
	})
}

// GetRejectedWebhooks handles GET /api/v1/admin/audit/rejected-webhooks
// @Summary List recently rejected webhook deliveries
// @Description Deliveries dropped for bad signatures or unparseable payloads; a spike here means someone is probing the endpoint
// @Tags Admin
// @Produce json
// @Param hours query int false "Window in hours" default(24)
// @Param limit query int false "Limit" default(50)
// @Success 200 {object} map[string]interface{} "Rejected deliveries"
// @Security BearerAuth
// @Router /api/v1/admin/audit/rejected-webhooks [get]
func (h *AdminHandler) GetRejectedWebhooks(c *gin.Context) {
	hours := 24
	if hoursStr := c.Query("hours"); hoursStr != "" {
		if parsed, err := strconv.Atoi(hoursStr); err == nil && parsed > 0 && parsed <= 720 {
			hours = parsed
		}
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.auditRepo.GetRecentByEventType(c.Request.Context(), models.PaymentEventWebhookRejected, hours, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load rejected webhooks")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load rejected webhooks",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window_hours": hours,
		"rejected":     events,
		"count":        len(events),
	})
}
