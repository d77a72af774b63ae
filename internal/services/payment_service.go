package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/metrics"
	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/pkg/sms"
)

// PaymentService reconciles processor payment events with bookings.
//
// Money state can arrive on two paths: the asynchronous webhook and the
// client-redirect fallback check. Both funnel into applyPaymentSuccess,
// and every transition is a guarded UPDATE, so a delivery landing twice
// (or on both paths at once) settles as a recorded no-op instead of a
// double confirmation.
type PaymentService struct {
	paymentRepo  *database.PaymentRepository
	bookingRepo  *database.BookingRepository
	hotelRepo    *database.HotelRepository
	userRepo     *database.UserRepository
	auditRepo    *database.PaymentAuditRepository
	gateway      *PaymentGatewayService
	availability *AvailabilityService
	smsSender    sms.Sender
	smsMode      string
	logger       *logrus.Logger
}

// NewPaymentService creates a new payment reconciliation service
func NewPaymentService(
	paymentRepo *database.PaymentRepository,
	bookingRepo *database.BookingRepository,
	hotelRepo *database.HotelRepository,
	userRepo *database.UserRepository,
	auditRepo *database.PaymentAuditRepository,
	gateway *PaymentGatewayService,
	availability *AvailabilityService,
	smsSender sms.Sender,
	smsMode string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		bookingRepo:  bookingRepo,
		hotelRepo:    hotelRepo,
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		gateway:      gateway,
		availability: availability,
		smsSender:    smsSender,
		smsMode:      smsMode,
		logger:       logger,
	}
}

// CreatePaymentIntent opens a payment intent for a pending booking.
// Calling it again for the same booking abandons the previous attempt at
// the processor and records a fresh attempt row here.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, bookingID, userID uuid.UUID, ipAddress, userAgent string) (*models.PaymentIntentResponse, error) {
	// Step 1: Load the booking
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	// Step 2: Only the booking owner can pay for it
	if booking.UserID != userID {
		return nil, models.ErrUnauthorized
	}

	// Step 3: Check booking state
	if !booking.CanInitiatePayment() {
		return nil, fmt.Errorf("cannot initiate payment for booking with status %s and payment status %s",
			booking.Status, booking.PaymentStatus)
	}

	// Step 4: Load customer details for the processor
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	params := &CreateIntentParams{
		BookingID:    booking.ID,
		Amount:       booking.TotalPrice,
		Currency:     booking.Currency,
		Description:  fmt.Sprintf("Hotel booking %s", shortReference(booking.ID)),
		CustomerName: user.Name,
	}
	if booking.ContactPhone != nil {
		params.CustomerPhone = *booking.ContactPhone
	}

	// Step 5: Open the intent at the processor
	intent, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		return nil, err
	}

	// Step 6: Record the attempt
	payment := &models.Payment{
		BookingID: booking.ID,
		IntentID:  intent.IntentID,
		Amount:    booking.TotalPrice,
		Currency:  booking.Currency,
		Status:    models.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}

	// Step 7: Point the booking at its latest intent
	if err := s.bookingRepo.SetPaymentIntent(booking.ID, intent.IntentID); err != nil {
		return nil, err
	}

	// Step 8: Audit trail
	audit := models.NewPaymentAudit(models.PaymentEventIntentCreated, models.PaymentSourceUser).
		ForBooking(booking.ID).
		ForIntent(intent.IntentID).
		FromRequest(ipAddress, userAgent).
		WithDetails(models.AuditDetails{
			"amount":   booking.TotalPrice,
			"currency": booking.Currency,
			"attempt":  payment.Attempt,
		})
	s.auditRepo.Log(ctx, audit)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"intent_id":  intent.IntentID,
		"attempt":    payment.Attempt,
		"amount":     booking.TotalPrice,
	}).Info("Payment intent created")

	return &models.PaymentIntentResponse{
		BookingID:    booking.ID,
		IntentID:     intent.IntentID,
		ClientSecret: intent.ClientSecret,
		Amount:       booking.TotalPrice,
		AmountMinor:  models.MinorUnits(booking.TotalPrice),
		Currency:     booking.Currency,
		Attempt:      payment.Attempt,
	}, nil
}

// HandleWebhook processes a raw webhook delivery from the processor.
//
// The returned error tells the caller what went wrong for its own logging,
// but the HTTP handler acknowledges with 200 regardless: the processor
// retries on non-2xx, and retrying a bad-signature or unmatched event
// can never make it good.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, ipAddress, userAgent string) error {
	// Step 1: Verify the signature before trusting a single byte
	if !s.gateway.VerifySignature(body, signature) {
		audit := models.NewPaymentAudit(models.PaymentEventWebhookRejected, models.PaymentSourceWebhook).
			WithPayload(string(body)).
			WithError("invalid webhook signature").
			FromRequest(ipAddress, userAgent)
		s.auditRepo.Log(ctx, audit)

		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		s.logger.WithField("ip", ipAddress).Warn("Webhook rejected: invalid signature")
		return models.ErrInvalidSignature
	}

	// Step 2: Parse the event
	event, err := s.gateway.ParseEvent(body)
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventWebhookRejected, models.PaymentSourceWebhook).
			WithPayload(string(body)).
			WithError(err.Error()).
			FromRequest(ipAddress, userAgent)
		s.auditRepo.Log(ctx, audit)

		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		return err
	}

	// Step 3: Record the delivery
	received := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		ForIntent(event.IntentID).
		WithPayload(string(body)).
		FromRequest(ipAddress, userAgent).
		WithDetails(models.AuditDetails{
			"event_id":   event.EventID,
			"event_type": event.Type,
		})
	s.auditRepo.Log(ctx, received)

	// Step 4: Match the intent to a payment attempt
	payment, err := s.paymentRepo.GetByIntentID(event.IntentID)
	if err != nil {
		if err == models.ErrPaymentNotFound {
			audit := models.NewPaymentAudit(models.PaymentEventUnmatchedIntent, models.PaymentSourceWebhook).
				ForIntent(event.IntentID).
				WithPayload(string(body)).
				WithError("no payment attempt matches this intent").
				FromRequest(ipAddress, userAgent)
			s.auditRepo.Log(ctx, audit)

			metrics.WebhookEvents.WithLabelValues("unmatched").Inc()
			s.logger.WithFields(logrus.Fields{
				"intent_id": event.IntentID,
				"event_id":  event.EventID,
			}).Warn("Webhook for unknown payment intent, acknowledging without action")
			return nil
		}
		return err
	}

	// Step 5: Cross-check the booking id the processor echoed back
	if event.Metadata.BookingID != "" && event.Metadata.BookingID != payment.BookingID.String() {
		audit := models.NewPaymentAudit(models.PaymentEventUnmatchedIntent, models.PaymentSourceWebhook).
			ForBooking(payment.BookingID).
			ForIntent(event.IntentID).
			WithError("webhook metadata names a different booking").
			FromRequest(ipAddress, userAgent).
			WithDetails(models.AuditDetails{
				"metadata_booking_id": event.Metadata.BookingID,
				"payment_booking_id":  payment.BookingID.String(),
			})
		s.auditRepo.Log(ctx, audit)

		metrics.WebhookEvents.WithLabelValues("unmatched").Inc()
		s.logger.WithFields(logrus.Fields{
			"intent_id":           event.IntentID,
			"metadata_booking_id": event.Metadata.BookingID,
			"payment_booking_id":  payment.BookingID,
		}).Warn("Webhook metadata mismatch, acknowledging without action")
		return nil
	}

	metrics.WebhookEvents.WithLabelValues("accepted").Inc()

	// Step 6: Apply the outcome
	switch {
	case event.IsPaymentSuccess():
		amount := float64(event.AmountMinor) / 100
		return s.applyPaymentSuccess(ctx, payment, &amount, event.Currency, models.PaymentSourceWebhook, ipAddress, userAgent)
	case event.Type == models.GatewayEventPaymentFailed:
		return s.applyPaymentFailure(ctx, payment, models.PaymentSourceWebhook, ipAddress, userAgent)
	default:
		s.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"intent_id":  event.IntentID,
		}).Debug("Ignoring webhook event type")
		return nil
	}
}

// ConfirmPayment is the client-redirect fallback: the browser came back
// claiming the payment went through, so ask the processor directly and
// reconcile from its answer. Never trusts anything the client carried.
func (s *PaymentService) ConfirmPayment(ctx context.Context, bookingID, userID uuid.UUID, ipAddress, userAgent string) (*models.ConfirmPaymentResponse, error) {
	// Step 1: Load the booking and check ownership
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, models.ErrUnauthorized
	}

	// Step 2: A booking that never opened an intent has nothing to reconcile
	if booking.PaymentIntentID == nil || *booking.PaymentIntentID == "" {
		return nil, models.ErrPaymentNotFound
	}
	intentID := *booking.PaymentIntentID

	payment, err := s.paymentRepo.GetByIntentID(intentID)
	if err != nil {
		return nil, err
	}

	// Step 3: Record that the fallback path ran
	audit := models.NewPaymentAudit(models.PaymentEventFallbackCheck, models.PaymentSourceAPI).
		ForBooking(booking.ID).
		ForIntent(intentID).
		FromRequest(ipAddress, userAgent)
	s.auditRepo.Log(ctx, audit)

	// Step 4: Already settled? Nothing to ask the processor
	if booking.IsConfirmed() && booking.PaymentStatus == models.BookingPaymentCompleted {
		return &models.ConfirmPaymentResponse{
			BookingID:     booking.ID,
			Status:        booking.Status,
			PaymentStatus: booking.PaymentStatus,
		}, nil
	}

	// Step 5: Ask the processor for the authoritative intent state
	intent, err := s.gateway.CheckIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	// Step 6: Reconcile from the processor's answer
	switch intent.Status {
	case models.GatewayIntentSucceeded:
		amount := float64(intent.AmountMinor) / 100
		if err := s.applyPaymentSuccess(ctx, payment, &amount, intent.Currency, models.PaymentSourceAPI, ipAddress, userAgent); err != nil {
			return nil, err
		}
	case models.GatewayIntentFailed:
		if err := s.applyPaymentFailure(ctx, payment, models.PaymentSourceAPI, ipAddress, userAgent); err != nil {
			return nil, err
		}
	default:
		s.logger.WithFields(logrus.Fields{
			"intent_id": intentID,
			"status":    intent.Status,
		}).Info("Payment intent still pending at processor")
	}

	// Step 7: Report the booking state after reconciliation
	booking, err = s.bookingRepo.GetByID(payment.BookingID)
	if err != nil {
		return nil, err
	}

	return &models.ConfirmPaymentResponse{
		BookingID:     booking.ID,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
	}, nil
}

// ListPayments returns the attempt history for a booking
func (s *PaymentService) ListPayments(bookingID, userID uuid.UUID) ([]models.Payment, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, models.ErrUnauthorized
	}

	return s.paymentRepo.GetByBookingID(bookingID)
}

// applyPaymentSuccess is the single convergence point for a successful
// payment, whichever path reported it. Ordering matters:
//
//  1. verify the amount, refusing to confirm on a mismatch
//  2. flip the payment attempt (guarded, at most one per booking)
//  3. flip the booking to confirmed (guarded on pending)
//
// A delivery that lost the race at step 2 is recorded as a duplicate and
// dropped. A payment that succeeded after the booking was cancelled is
// flagged for operators at step 3.
func (s *PaymentService) applyPaymentSuccess(ctx context.Context, payment *models.Payment, receivedAmount *float64, currency string, source models.PaymentEventSource, ipAddress, userAgent string) error {
	booking, err := s.bookingRepo.GetByID(payment.BookingID)
	if err != nil {
		return err
	}

	// Step 1: Verify the charged amount against the booking total
	if receivedAmount != nil {
		audit := models.NewPaymentAudit(models.PaymentEventAmountMismatch, source).
			ForBooking(booking.ID).
			ForIntent(payment.IntentID).
			FromRequest(ipAddress, userAgent)

		if !audit.VerifyAmounts(booking.TotalPrice, *receivedAmount, currency) {
			audit.WithError("charged amount does not match booking total")
			s.auditRepo.Log(ctx, audit)

			metrics.PaymentOutcomes.WithLabelValues("mismatch").Inc()
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"intent_id":  payment.IntentID,
				"expected":   booking.TotalPrice,
				"received":   *receivedAmount,
				"source":     source,
			}).Error("Payment amount mismatch, booking left unconfirmed for manual review")
			return nil
		}
	}

	// Step 2: Flip the payment attempt to succeeded
	changed, err := s.paymentRepo.MarkSucceeded(payment.IntentID)
	if err != nil {
		return err
	}
	if !changed {
		// This booking already has a settled payment: duplicate delivery
		// or a second attempt racing the first. Record and drop.
		audit := models.NewPaymentAudit(models.PaymentEventPaymentSucceeded, source).
			ForBooking(booking.ID).
			ForIntent(payment.IntentID).
			FromRequest(ipAddress, userAgent).
			AsDuplicate()
		s.auditRepo.Log(ctx, audit)

		metrics.PaymentOutcomes.WithLabelValues("duplicate").Inc()
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"intent_id":  payment.IntentID,
			"source":     source,
		}).Info("Duplicate payment success delivery, no action taken")
		return nil
	}

	successAudit := models.NewPaymentAudit(models.PaymentEventPaymentSucceeded, source).
		ForBooking(booking.ID).
		ForIntent(payment.IntentID).
		FromRequest(ipAddress, userAgent)
	if receivedAmount != nil {
		successAudit.VerifyAmounts(booking.TotalPrice, *receivedAmount, currency)
	}
	s.auditRepo.Log(ctx, successAudit)

	// Step 3: Confirm the booking
	confirmed, err := s.bookingRepo.Confirm(booking.ID)
	if err != nil {
		return err
	}
	if !confirmed {
		current, err := s.bookingRepo.GetByID(booking.ID)
		if err != nil {
			return err
		}

		if current.IsCancelled() {
			audit := models.NewPaymentAudit(models.PaymentEventCancelledConflict, source).
				ForBooking(booking.ID).
				ForIntent(payment.IntentID).
				WithError("payment succeeded for a cancelled booking").
				FromRequest(ipAddress, userAgent)
			s.auditRepo.Log(ctx, audit)

			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"intent_id":  payment.IntentID,
			}).Error("CRITICAL: Payment succeeded for cancelled booking, needs manual refund")
		} else {
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"status":     current.Status,
			}).Warn("Payment settled but booking was not pending")
		}

		metrics.PaymentOutcomes.WithLabelValues("succeeded").Inc()
		return nil
	}

	confirmAudit := models.NewPaymentAudit(models.PaymentEventBookingConfirmed, source).
		ForBooking(booking.ID).
		ForIntent(payment.IntentID).
		FromRequest(ipAddress, userAgent)
	s.auditRepo.Log(ctx, confirmAudit)

	metrics.PaymentOutcomes.WithLabelValues("succeeded").Inc()

	// Confirmed bookings hold rooms, so cached availability is now stale
	s.availability.InvalidateHotel(ctx, booking.HotelID)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"intent_id":  payment.IntentID,
		"source":     source,
	}).Info("Booking confirmed after successful payment")

	s.sendConfirmationSMS(ctx, booking)

	return nil
}

// applyPaymentFailure marks the attempt failed and surfaces the failure
// on the booking so the guest can retry
func (s *PaymentService) applyPaymentFailure(ctx context.Context, payment *models.Payment, source models.PaymentEventSource, ipAddress, userAgent string) error {
	changed, err := s.paymentRepo.MarkFailed(payment.IntentID)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.WithFields(logrus.Fields{
			"intent_id": payment.IntentID,
			"source":    source,
		}).Debug("Payment failure delivery for already settled attempt, ignoring")
		return nil
	}

	if _, err := s.bookingRepo.MarkPaymentFailed(payment.BookingID); err != nil {
		return err
	}

	audit := models.NewPaymentAudit(models.PaymentEventPaymentFailed, source).
		ForBooking(payment.BookingID).
		ForIntent(payment.IntentID).
		FromRequest(ipAddress, userAgent)
	s.auditRepo.Log(ctx, audit)

	metrics.PaymentOutcomes.WithLabelValues("failed").Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id": payment.BookingID,
		"intent_id":  payment.IntentID,
		"source":     source,
	}).Info("Payment attempt failed, guest can retry")

	return nil
}

// sendConfirmationSMS texts the guest once their booking is confirmed.
// SMS problems are logged and swallowed: reconciliation already happened
// and must not unwind over a notification.
func (s *PaymentService) sendConfirmationSMS(ctx context.Context, booking *models.Booking) {
	if booking.ContactPhone == nil || *booking.ContactPhone == "" {
		return
	}

	hotelName := "your hotel"
	if hotel, err := s.hotelRepo.GetByID(booking.HotelID); err == nil {
		hotelName = hotel.Name
	}

	message := fmt.Sprintf(
		"Your booking at %s is confirmed! Check-in %s, %d night(s), %s %.2f. Ref: %s",
		hotelName,
		booking.CheckInDate.Format("02 Jan 2006"),
		booking.Nights,
		booking.Currency,
		booking.TotalPrice,
		shortReference(booking.ID),
	)

	if s.smsMode != "production" {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"message":    message,
		}).Info("SMS gateway in development mode, confirmation not sent")
		return
	}

	if s.smsSender == nil {
		return
	}

	messageID, err := s.smsSender.Send(ctx, *booking.ContactPhone, message)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to send confirmation SMS")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"provider":   s.smsSender.Name(),
		"message_id": messageID,
	}).Debug("Confirmation SMS accepted by provider")
}

// shortReference derives a human-friendly booking reference from the id
func shortReference(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
