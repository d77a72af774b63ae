package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/services"
	"github.com/stayhaven/booking-backend/internal/utils"
)

// SignatureHeader carries the gateway's HMAC signature on webhook calls
const SignatureHeader = "X-StayPay-Signature"

// PaymentHandler owns the payment routes: intent creation, the gateway
// webhook, and the client-side confirm fallback.
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// ============================================================================
// CREATE PAYMENT INTENT - POST /api/v1/bookings/:id/payment-intent
// ============================================================================

// CreatePaymentIntent starts a payment attempt for a pending booking
// @Summary Create a payment intent
// @Description Register a payment attempt with the gateway and return the client secret
// @Tags Payments
// @Produce json
// @Param id path string true "Booking UUID"
// @Success 201 {object} models.PaymentIntentResponse "Intent created"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the booking owner"
// @Failure 404 {object} ErrorResponse "Booking not found"
// @Failure 504 {object} ErrorResponse "Gateway timeout"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/payment-intent [post]
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := pathUUID(c, "booking")
	if !ok {
		return
	}

	ipAddress := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)
	device := utils.ParseUserAgent(userAgent)

	h.logger.WithFields(logrus.Fields{
		"booking_id":  bookingID,
		"user_id":     userCtx.UserID,
		"ip":          ipAddress,
		"device_type": device.DeviceType,
		"os":          device.OS,
		"browser":     device.Browser,
	}).Info("Payment intent requested")

	intent, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), bookingID, userCtx.UserID, ipAddress, userAgent)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, intent)
}

// ============================================================================
// PAYMENT WEBHOOK - POST /api/v1/payments/webhook
// ============================================================================

// PaymentWebhook handles payment gateway webhook callbacks.
// Always answers 200 once the body has been read: the gateway retries on
// non-2xx, and a retry storm cannot fix a bad signature or unknown intent.
// Every rejected or unmatched event is audited inside the service instead.
// @Summary Payment webhook callback
// @Description Called by the payment gateway to notify of payment results
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body map[string]interface{} true "Webhook payload from gateway"
// @Success 200 {object} map[string]interface{} "Webhook acknowledged"
// @Failure 400 {object} map[string]interface{} "Unreadable request body"
// @Router /api/v1/payments/webhook [post]
func (h *PaymentHandler) PaymentWebhook(c *gin.Context) {
	// Read raw body for signature verification
	bodyBytes, err := c.GetRawData()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	ipAddress := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	if err := h.paymentService.HandleWebhook(c.Request.Context(), bodyBytes, signature, ipAddress, userAgent); err != nil {
		h.logger.WithError(err).WithField("ip", ipAddress).Warn("Webhook rejected")
		// Rejections still answer 200, see the handler comment
		c.JSON(http.StatusOK, gin.H{"error": "webhook rejected", "acknowledged": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "webhook processed", "acknowledged": true})
}

// ============================================================================
// CONFIRM PAYMENT FALLBACK - POST /api/v1/bookings/:id/confirm-payment
// ============================================================================

// ConfirmPayment is the client-redirect fallback for delayed webhooks.
// The client calls this after returning from the gateway; the server
// re-checks the booking's intent status with the gateway directly.
// @Summary Confirm a payment
// @Description Query the gateway for the booking's intent status and apply the result
// @Tags Payments
// @Produce json
// @Param id path string true "Booking UUID"
// @Success 200 {object} models.ConfirmPaymentResponse "Current booking state"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the booking owner"
// @Failure 404 {object} ErrorResponse "Booking or payment not found"
// @Failure 504 {object} ErrorResponse "Gateway timeout"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/confirm-payment [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := pathUUID(c, "booking")
	if !ok {
		return
	}

	ipAddress := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	result, err := h.paymentService.ConfirmPayment(c.Request.Context(), bookingID, userCtx.UserID, ipAddress, userAgent)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ============================================================================
// LIST PAYMENTS - GET /api/v1/bookings/:id/payments
// ============================================================================

// ListPayments returns every payment attempt recorded for a booking
// @Summary List payment attempts
// @Description List all payment attempts for a booking, newest first
// @Tags Payments
// @Produce json
// @Param id path string true "Booking UUID"
// @Success 200 {object} map[string]interface{} "Payment attempts"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Not the booking owner"
// @Failure 404 {object} ErrorResponse "Booking not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := pathUUID(c, "booking")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPayments(bookingID, userCtx.UserID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"count":    len(payments),
	})
}
