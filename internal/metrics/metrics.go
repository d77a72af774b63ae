package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestDuration tracks request latency per route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// BookingsCreated counts bookings accepted into pending state
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total bookings created",
		},
	)

	// BookingsCancelled counts cancellations, split by who triggered them
	BookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Total bookings cancelled",
		},
		[]string{"reason"}, // user, expired
	)

	// PaymentOutcomes counts terminal payment attempt outcomes
	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Terminal payment attempt outcomes",
		},
		[]string{"outcome"}, // succeeded, failed, duplicate, mismatch
	)

	// WebhookEvents counts webhook deliveries by processing result
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook deliveries by result",
		},
		[]string{"result"}, // accepted, rejected, unmatched
	)

	// AvailabilityChecks counts availability lookups by cache outcome
	AvailabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_checks_total",
			Help: "Availability lookups by cache outcome",
		},
		[]string{"cache"}, // hit, miss
	)

	// RatingRecomputes counts full rating recomputations
	RatingRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rating_recomputes_total",
			Help: "Hotel rating recomputations",
		},
	)
)

// Middleware records request duration and status for every route.
// Uses the route template, not the raw path, so UUIDs don't explode
// label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
