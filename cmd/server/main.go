package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/cache"
	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/handlers"
	"github.com/stayhaven/booking-backend/internal/metrics"
	"github.com/stayhaven/booking-backend/internal/middleware"
	"github.com/stayhaven/booking-backend/internal/services"
	"github.com/stayhaven/booking-backend/internal/utils"
	"github.com/stayhaven/booking-backend/pkg/jwt"
	"github.com/stayhaven/booking-backend/pkg/sms"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
	}).Info("Starting StayHaven booking backend")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Configuration rejected")
	}

	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown log level %q, staying on info", cfg.Server.LogLevel)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// NewConnection pings before returning, so a bad DSN fails the boot
	// here rather than on the first request
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Database unreachable")
	}
	defer db.Close()
	logger.Info("Database ready")

	// Initialize Redis cache (optional; a nil client degrades to
	// straight database reads)
	var cacheClient *cache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = cache.NewClient(cfg.Redis, logger)
		if err != nil {
			logger.Warnf("Redis unavailable, continuing without cache: %v", err)
			cacheClient = nil
		} else {
			logger.Info("Redis cache connected")
		}
	} else {
		logger.Info("Redis cache disabled (REDIS_ENABLED=false)")
	}
	defer cacheClient.Close()

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	userRepository := database.NewUserRepository(db)
	hotelRepository := database.NewHotelRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	paymentRepository := database.NewPaymentRepository(db)
	reviewRepository := database.NewReviewRepository(db)
	paymentAuditRepository := database.NewPaymentAuditRepository(db, logger)

	bookingWindow := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	rateLimitService := services.NewRateLimitServiceWithConfig(db, services.RateLimitConfig{
		MaxUserRequests: cfg.RateLimit.BookingsPerUser,
		UserWindow:      bookingWindow,
		MaxIPRequests:   cfg.RateLimit.BookingsPerIP,
		IPWindow:        bookingWindow,
	})
	availabilityService := services.NewAvailabilityService(
		hotelRepository,
		bookingRepository,
		cacheClient,
		cfg.Redis,
		logger,
	)
	bookingService := services.NewBookingService(
		bookingRepository,
		hotelRepository,
		userRepository,
		availabilityService,
		rateLimitService,
		cfg.Booking,
		logger,
	)

	// SMS sender for booking confirmations. Real messages only leave in
	// production mode; development logs them instead.
	var smsSender sms.Sender
	if cfg.SMS.Mode == "production" {
		smsSender = sms.NewTwilioGateway(sms.TwilioConfig{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
			BaseURL:    cfg.SMS.BaseURL,
		})
		logger.WithField("provider", smsSender.Name()).Info("SMS notifications enabled")
	} else {
		logger.Info("SMS sender in development mode (no actual SMS will be sent)")
	}

	gatewayService := services.NewPaymentGatewayService(&cfg.Payment, logger)
	paymentService := services.NewPaymentService(
		paymentRepository,
		bookingRepository,
		hotelRepository,
		userRepository,
		paymentAuditRepository,
		gatewayService,
		availabilityService,
		smsSender,
		cfg.SMS.Mode,
		logger,
	)
	ratingService := services.NewRatingService(
		reviewRepository,
		hotelRepository,
		bookingRepository,
		userRepository,
		cacheClient,
		cfg.Redis,
		logger,
	)

	// Background sweeper that expires stale pending bookings
	expirationService := services.NewBookingExpirationService(bookingRepository, cfg.Booking, logger)
	expirationService.Start()
	defer expirationService.Stop()
	logger.WithFields(logrus.Fields{
		"interval":       cfg.Booking.SweepInterval.String(),
		"expiry_minutes": cfg.Booking.PendingExpiryMinutes,
	}).Info("Pending-booking sweeper started")

	cronService := services.NewCronService(ratingService, paymentAuditRepository, rateLimitService, cfg.Cron, logger)
	if err := cronService.Start(); err != nil {
		logger.WithError(err).Fatal("Cron scheduler failed to start")
	}
	logger.WithField("rating_repair", cfg.Cron.RatingRepairSchedule).Info("Scheduled jobs registered")

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, bookingService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	reviewHandler := handlers.NewReviewHandler(ratingService, logger)
	hotelHandler := handlers.NewHotelHandler(hotelRepository, logger)
	adminHandler := handlers.NewAdminHandler(
		cronService,
		expirationService,
		ratingService,
		paymentAuditRepository,
		logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog(logger))
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db, cacheClient))
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		// Shows how proxy headers resolve; never mounted in production
		if cfg.Server.Environment != "production" {
			v1.GET("/debug/headers", ipDebugHandler())
		}

		// Hotel catalog, availability and reviews (public)
		hotels := v1.Group("/hotels")
		{
			hotels.GET("", hotelHandler.ListHotels)
			hotels.GET("/:id", hotelHandler.GetHotel)
			hotels.GET("/:id/availability", availabilityHandler.CheckAvailability)
			hotels.GET("/:id/quote", availabilityHandler.GetQuote)
			hotels.GET("/:id/reviews", reviewHandler.ListHotelReviews)
			hotels.GET("/:id/rating", reviewHandler.GetHotelRating)

			// Writing a review needs an authenticated guest
			hotelsProtected := hotels.Group("")
			hotelsProtected.Use(middleware.AuthMiddleware(jwtService))
			{
				hotelsProtected.POST("/:id/reviews", reviewHandler.CreateReview)
			}
		}

		// Booking routes (all protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListMyBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.POST("/:id/payment-intent", paymentHandler.CreatePaymentIntent)
			bookings.POST("/:id/confirm-payment", paymentHandler.ConfirmPayment)
			bookings.GET("/:id/payments", paymentHandler.ListPayments)
		}

		// Payment routes
		payments := v1.Group("/payments")
		{
			// Webhook is authenticated by HMAC signature, not JWT. The
			// processor cannot carry our bearer tokens.
			payments.POST("/webhook", paymentHandler.PaymentWebhook)
		}

		// Review management routes (protected)
		reviews := v1.Group("/reviews")
		reviews.Use(middleware.AuthMiddleware(jwtService))
		{
			reviews.PUT("/:id", reviewHandler.UpdateReview)
			reviews.DELETE("/:id", reviewHandler.DeleteReview)
		}

		// Admin routes (protected + admin role required)
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireAdmin())
		{
			// Scheduled job control
			admin.GET("/cron/status", adminHandler.GetCronStatus)
			admin.POST("/cron/rating-repair", adminHandler.TriggerRatingRepair)
			admin.POST("/cron/audit-retention", adminHandler.TriggerAuditRetention)

			// Rating management
			admin.POST("/hotels/:id/recompute-rating", adminHandler.RecomputeHotelRating)

			// Reconciliation audit queries
			admin.GET("/audit/bookings/:id", adminHandler.GetBookingAuditTrail)
			admin.GET("/audit/intents/:intent_id", adminHandler.GetIntentAuditTrail)
			admin.GET("/audit/mismatches", adminHandler.GetAmountMismatches)
			admin.GET("/audit/rejected-webhooks", adminHandler.GetRejectedWebhooks)

			// Maintenance endpoints additionally require the shared
			// operations key
			maintenance := admin.Group("/maintenance")
			maintenance.Use(middleware.RequireMaintenanceKey(cfg.Security.MaintenanceKeyHash, logger))
			{
				maintenance.POST("/expire-pending", adminHandler.ExpirePendingBookings)
			}
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		logger.Infof("Listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Block until SIGINT/SIGTERM, then drain: stop taking requests, let
	// in-flight ones finish, stop the background jobs
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	logger.Info("Shutdown signal received, draining")
	cronService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Forced shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// accessLog emits one structured line per request, after the handler
// chain has run, so status and authenticated identity are both known.
func accessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         utils.GetRealIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields["query"] = query
		}
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
			if userCtx.IsAdmin {
				fields["is_admin"] = true
			}
		}

		entry := logger.WithFields(fields)
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		status := c.Writer.Status()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	}
}

// healthCheckHandler reports liveness. The database is load-bearing so
// its failure makes the whole check fail; the cache tier degrades to
// direct reads, so a redis outage is reported without flipping the
// service unhealthy.
func healthCheckHandler(db database.DB, cacheClient *cache.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
				"error":    err.Error(),
			})
			return
		}

		redisStatus := "healthy"
		if err := cacheClient.Ping(c.Request.Context()); err != nil {
			redisStatus = "unavailable"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

// ipDebugHandler answers with every input to client address resolution,
// for verifying reverse-proxy configuration outside production.
func ipDebugHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"resolved_ip":     utils.GetRealIP(c),
			"gin_client_ip":   c.ClientIP(),
			"remote_addr":     c.Request.RemoteAddr,
			"x_real_ip":       c.GetHeader("X-Real-IP"),
			"x_forwarded_for": c.GetHeader("X-Forwarded-For"),
			"user_agent":      c.Request.UserAgent(),
		})
	}
}
