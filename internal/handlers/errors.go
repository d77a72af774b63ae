package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/middleware"
	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/internal/services"
)

// ErrorResponse is the error envelope every endpoint returns. Cases
// that carry extra fields (availability, rate limiting) extend it with
// gin.H but keep the same three base keys.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// requireUser pulls the authenticated user off the context. Routes in
// this package sit behind the auth middleware, so a miss means a wiring
// bug; it still answers with a clean 401 rather than a panic.
func requireUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "Sign in to continue",
			Code:    "UNAUTHENTICATED",
		})
	}
	return userCtx, ok
}

// pathUUID parses the :id path segment as a UUID. On garbage it answers
// 400 with a code built from the resource noun, e.g. INVALID_BOOKING_ID.
func pathUUID(c *gin.Context, noun string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err == nil {
		return id, true
	}

	slug := "invalid_" + noun + "_id"
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   slug,
		Message: strings.ToUpper(noun[:1]) + noun[1:] + " ID must be a valid UUID",
		Code:    strings.ToUpper(slug),
	})
	return uuid.Nil, false
}

// respondBindError reports a request body that failed binding.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request_body",
		Message: "Invalid request body: " + err.Error(),
		Code:    "INVALID_REQUEST_BODY",
	})
}

// respondServiceError maps service-layer errors onto HTTP responses.
// Anything unrecognized is a 500 and gets logged with its cause; the
// client only ever sees a generic message for those.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error) {
	var validationErr *models.ValidationError
	var availabilityErr *models.InsufficientAvailabilityError
	var rateLimitErr *services.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Message: validationErr.Message,
			Code:    "VALIDATION_ERROR",
		})

	case errors.Is(err, models.ErrInvalidDateRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_date_range",
			Message: "Check-out date must be after check-in date",
			Code:    "INVALID_DATE_RANGE",
		})

	case errors.As(err, &availabilityErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient_availability",
			"message":   availabilityErr.Error(),
			"code":      "INSUFFICIENT_AVAILABILITY",
			"requested": availabilityErr.Requested,
			"available": availabilityErr.Available,
		})

	case errors.As(err, &rateLimitErr):
		seconds := int(time.Until(rateLimitErr.RetryAfter).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too_many_bookings",
			"message":     rateLimitErr.Message,
			"code":        "RATE_LIMITED",
			"scope":       rateLimitErr.Type,
			"retry_after": rateLimitErr.RetryAfter.UTC().Format(time.RFC3339),
		})

	case errors.Is(err, models.ErrHotelNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "hotel_not_found",
			Message: "Hotel not found",
			Code:    "HOTEL_NOT_FOUND",
		})

	case errors.Is(err, models.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "booking_not_found",
			Message: "Booking not found",
			Code:    "BOOKING_NOT_FOUND",
		})

	case errors.Is(err, models.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "payment_not_found",
			Message: "Payment not found",
			Code:    "PAYMENT_NOT_FOUND",
		})

	case errors.Is(err, models.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "review_not_found",
			Message: "Review not found",
			Code:    "REVIEW_NOT_FOUND",
		})

	case errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "user_not_found",
			Message: "User not found",
			Code:    "USER_NOT_FOUND",
		})

	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Not authorized to access this resource",
			Code:    "NOT_RESOURCE_OWNER",
		})

	case errors.Is(err, models.ErrAdminNotAllowed):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "admin_not_allowed",
			Message: "Admin accounts cannot book or review hotels",
			Code:    "ADMIN_NOT_ALLOWED",
		})

	case errors.Is(err, models.ErrReviewNotEligible):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "review_not_eligible",
			Message: "Reviews require a paid, completed stay at this hotel",
			Code:    "REVIEW_NOT_ELIGIBLE",
		})

	case errors.Is(err, models.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_cancelled",
			Message: "This booking has already been cancelled",
			Code:    "ALREADY_CANCELLED",
		})

	case errors.Is(err, models.ErrCancellationWindowClosed):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "cancellation_window_closed",
			Message: "The free cancellation window for this booking has closed",
			Code:    "CANCELLATION_WINDOW_CLOSED",
		})

	case errors.Is(err, models.ErrDuplicateReview):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_review",
			Message: "You have already reviewed this hotel",
			Code:    "DUPLICATE_REVIEW",
		})

	case errors.Is(err, models.ErrGatewayTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error:   "gateway_timeout",
			Message: "The payment gateway did not respond in time. Please try again.",
			Code:    "GATEWAY_TIMEOUT",
		})

	case errors.Is(err, models.ErrGatewayRejected):
		logger.WithError(err).Error("Payment gateway rejected a request")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "gateway_rejected",
			Message: "The payment gateway could not process the request.",
			Code:    "GATEWAY_REJECTED",
		})

	default:
		logger.WithError(err).Error("Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong. Please try again later.",
		})
	}
}
