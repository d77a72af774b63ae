// Smoke test for the payment audit trail against a live database.
// Writes two events for a throwaway booking id, reads them back, and
// runs the mismatch report the admin endpoint uses. Needs DATABASE_URL.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/models"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Database: %v", err)
	}
	defer db.Close()

	auditRepo := database.NewPaymentAuditRepository(db, logger)

	ctx := context.Background()
	bookingID := uuid.New()
	intentID := "pi_smoke_" + uuid.NewString()[:8]
	logger.WithFields(logrus.Fields{"booking_id": bookingID, "intent_id": intentID}).
		Info("Writing smoke events")

	failed := false
	check := func(name string, err error) {
		if err != nil {
			failed = true
			logger.WithError(err).Errorf("FAIL %s", name)
			return
		}
		logger.Infof("ok   %s", name)
	}

	matched := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		ForBooking(bookingID).
		ForIntent(intentID).
		FromRequest("203.0.113.45", "audit-smoke/1.0")
	matched.VerifyAmounts(600.00, 600.00, "USD")
	check("log webhook event", auditRepo.Log(ctx, matched))

	mismatch := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceWebhook).
		ForBooking(bookingID).
		ForIntent(intentID).
		WithError("expected 600.00, received 550.00")
	mismatch.VerifyAmounts(600.00, 550.00, "USD")
	check("log amount mismatch", auditRepo.Log(ctx, mismatch))

	events, err := auditRepo.GetByBookingID(ctx, bookingID)
	check("read back by booking", err)
	if err == nil && len(events) != 2 {
		failed = true
		logger.Errorf("FAIL read back by booking: want 2 events, got %d", len(events))
	}
	for _, e := range events {
		intent := "-"
		if e.IntentID != nil {
			intent = *e.IntentID
		}
		fmt.Printf("  %-20s %-16s intent=%s duplicate=%v %s\n",
			e.EventType, e.EventSource, intent, e.IsDuplicate,
			e.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	mismatches, err := auditRepo.GetAmountMismatches(ctx, 5)
	check("mismatch report", err)
	if err == nil {
		logger.Infof("Mismatch report returned %d rows (limit 5)", len(mismatches))
	}

	if failed {
		os.Exit(1)
	}
	logger.Info("Audit trail smoke test passed")
}
