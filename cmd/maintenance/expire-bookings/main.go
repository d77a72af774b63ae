package main

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/services"
)

// One-shot version of the in-process expiration sweep. The server runs
// the same sweep on a ticker; this binary exists for cron-style setups
// and for kicking a sweep by hand after an incident.
func main() {
	var (
		dbURL  string
		maxAge int
	)
	flag.StringVar(&dbURL, "database-url", "", "connection string, falls back to DATABASE_URL")
	flag.IntVar(&maxAge, "max-age-minutes", 0, "expire pending bookings older than this, falls back to BOOKING_PENDING_EXPIRY_MINUTES")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load() // optional; cron environments set real env vars

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("No database configured: set DATABASE_URL or pass -database-url")
	}

	if maxAge <= 0 {
		if env := os.Getenv("BOOKING_PENDING_EXPIRY_MINUTES"); env != "" {
			parsed, err := strconv.Atoi(env)
			if err != nil {
				logger.WithError(err).Fatal("BOOKING_PENDING_EXPIRY_MINUTES is not a number")
			}
			maxAge = parsed
		}
	}
	if maxAge <= 0 {
		maxAge = 30
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		logger.WithError(err).Fatal("Database unreachable")
	}
	defer db.Close()

	bookingRepo := database.NewBookingRepository(db)
	sweeper := services.NewBookingExpirationService(bookingRepo, config.BookingConfig{
		PendingExpiryMinutes: maxAge,
		SweepInterval:        time.Minute, // unused, the sweep runs once
	}, logger)

	logger.WithField("max_age_minutes", maxAge).Info("Expiring stale pending bookings")
	expired := sweeper.RunOnce()
	logger.WithField("expired", expired).Info("Sweep finished")
}
