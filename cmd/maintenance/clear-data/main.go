// Wipes every guest-facing table. Intended for staging resets; never wire
// this into a deploy path.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
)

// Listed in dependency order for the reader; TRUNCATE ... CASCADE clears
// referencing rows regardless.
var tables = []string{
	"payment_audits",
	"payments",
	"reviews",
	"bookings",
	"booking_rate_limits",
	"hotels",
	"users",
}

func main() {
	var (
		dbURL   = flag.String("database-url", "", "postgres connection string (overrides DATABASE_URL)")
		confirm = flag.Bool("yes", false, "required; the tool refuses to run without it")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if !*confirm {
		logger.Fatal("Refusing to truncate without -yes")
	}

	// Optional .env so secrets stay off the command line
	_ = godotenv.Load()

	url := *dbURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                url,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	statement := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := db.Exec(statement); err != nil {
		logger.WithError(err).Fatal("Truncate failed")
	}
	logger.Info("All tables truncated, identities reset")

	for _, table := range tables {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			logger.WithError(err).WithField("table", table).Warn("Count check failed")
			continue
		}
		logger.WithFields(logrus.Fields{"table": table, "rows": count}).Info("Post-clear count")
	}
}
