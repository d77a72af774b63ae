// Package config reads all runtime settings from the environment, with an
// optional .env file for local development. Every knob has a default that
// boots against a local stack; Validate catches the combinations that must
// not reach production.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the full runtime configuration, grouped by concern.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	SMS       SMSConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Security  SecurityConfig
	Payment   PaymentConfig
	Cron      CronConfig
}

// PaymentConfig configures the outbound payment gateway client.
type PaymentConfig struct {
	Environment    string        // "sandbox" or "production"
	BaseURL        string        // Gateway API base URL
	APIKey         string        // Gateway API key (SECRET - never expose to client)
	WebhookSecret  string        // HMAC secret for webhook signature verification
	ReturnURL      string        // URL the gateway redirects to after payment
	RequestTimeout time.Duration // Per-request timeout on outbound gateway calls
	RequestsPerSec int           // Client-side rate limit towards the gateway
}

type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig configures the cache tier. The service runs without it.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	AvailabilityTTL time.Duration // cache lifetime for availability lookups
	RatingTTL       time.Duration // cache lifetime for hotel rating reads
	Enabled         bool          // disable to run without a cache tier
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SMSConfig configures booking confirmation texts.
type SMSConfig struct {
	Mode       string // "dev" logs confirmations, "production" sends them
	AccountSID string
	AuthToken  string
	From       string // sending number or alphanumeric sender ID
	BaseURL    string // provider API host, overridable for testing
}

// BookingConfig holds the booking lifecycle rules.
type BookingConfig struct {
	CancellationCutoffDays int           // bookings are cancellable only while check-in is further away than this
	PendingExpiryMinutes   int           // unpaid pending bookings older than this are swept
	SweepInterval          time.Duration // how often the expiration sweeper runs
	MaxRoomsPerBooking     int
	DefaultCurrency        string
}

// RateLimitConfig bounds booking creation per account and per client
// address. One window covers both dimensions.
type RateLimitConfig struct {
	BookingsPerUser int
	BookingsPerIP   int
	WindowSeconds   int
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type SecurityConfig struct {
	BcryptCost         int
	EnableRequestLog   bool
	EnableAuditLog     bool
	MaintenanceKeyHash string // bcrypt hash guarding maintenance endpoints
}

// CronConfig schedules the background jobs.
type CronConfig struct {
	RatingRepairSchedule string // cron spec for the nightly rating recompute
	AuditRetentionDays   int    // payment audit rows older than this are purged
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	// Optional .env for local development; deployed environments inject
	// real variables.
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, reading configuration from the process environment")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "localhost:6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			AvailabilityTTL: getEnvAsDuration("REDIS_AVAILABILITY_TTL", 30*time.Second),
			RatingTTL:       getEnvAsDuration("REDIS_RATING_TTL", 5*time.Minute),
			Enabled:         getEnvAsBool("REDIS_ENABLED", true),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_TOKEN_EXPIRY", time.Hour),
		},
		SMS: SMSConfig{
			Mode:       getEnv("SMS_MODE", "dev"), // "dev" or "production"
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_FROM", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", ""),
		},
		Booking: BookingConfig{
			CancellationCutoffDays: getEnvAsInt("BOOKING_CANCELLATION_CUTOFF_DAYS", 7),
			PendingExpiryMinutes:   getEnvAsInt("BOOKING_PENDING_EXPIRY_MINUTES", 30),
			SweepInterval:          getEnvAsDuration("BOOKING_SWEEP_INTERVAL", time.Minute),
			MaxRoomsPerBooking:     getEnvAsInt("BOOKING_MAX_ROOMS", 10),
			DefaultCurrency:        getEnv("BOOKING_DEFAULT_CURRENCY", "LKR"),
		},
		RateLimit: RateLimitConfig{
			BookingsPerUser: getEnvAsInt("RATE_LIMIT_BOOKINGS_PER_USER", 10),
			BookingsPerIP:   getEnvAsInt("RATE_LIMIT_BOOKINGS_PER_IP", 30),
			WindowSeconds:   getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 3600),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog:   getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:     getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
			MaintenanceKeyHash: getEnv("MAINTENANCE_KEY_HASH", ""),
		},
		Payment: PaymentConfig{
			Environment:    getEnv("PAYMENT_ENVIRONMENT", "sandbox"),
			BaseURL:        getEnv("PAYMENT_GATEWAY_URL", ""),
			APIKey:         getEnv("PAYMENT_API_KEY", ""),
			WebhookSecret:  getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			ReturnURL:      getEnv("PAYMENT_RETURN_URL", ""),
			RequestTimeout: getEnvAsDuration("PAYMENT_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSec: getEnvAsInt("PAYMENT_REQUESTS_PER_SECOND", 20),
		},
		Cron: CronConfig{
			RatingRepairSchedule: getEnv("CRON_RATING_REPAIR_SCHEDULE", "0 3 * * *"),
			AuditRetentionDays:   getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations that cannot work. Defaults pass, so
// only overridden values can fail here.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.CancellationCutoffDays < 0 {
		return fmt.Errorf("BOOKING_CANCELLATION_CUTOFF_DAYS must not be negative")
	}

	if c.Booking.PendingExpiryMinutes <= 0 {
		return fmt.Errorf("BOOKING_PENDING_EXPIRY_MINUTES must be positive")
	}

	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive")
	}

	// Gateway credentials are only enforced in production; sandbox runs
	// against a stub without them.
	if c.Payment.Environment == "production" {
		if c.Payment.BaseURL == "" {
			return fmt.Errorf("PAYMENT_GATEWAY_URL is required in production mode")
		}

		if c.Payment.APIKey == "" {
			return fmt.Errorf("PAYMENT_API_KEY is required in production mode")
		}

		if c.Payment.WebhookSecret == "" {
			return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required in production mode")
		}
	}

	// SMS credentials only matter once messages actually leave
	if c.SMS.Mode == "production" {
		if c.SMS.AccountSID == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID is required in production SMS mode")
		}
		if c.SMS.AuthToken == "" {
			return fmt.Errorf("TWILIO_AUTH_TOKEN is required in production SMS mode")
		}
		if c.SMS.From == "" {
			return fmt.Errorf("TWILIO_FROM is required in production SMS mode")
		}
	}

	return nil
}

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.Warnf("Invalid integer %q for %s, using default %d", raw, key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.Warnf("Invalid boolean %q for %s, using default %t", raw, key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration parses Go duration strings ("30s", "5m", "1h").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		logrus.Warnf("Invalid duration %q for %s, using default %s", raw, key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsSlice parses a comma-separated list, dropping empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
