package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
)

// Fixed schedules, staggered so nothing runs alongside the rating
// repair. Only the repair schedule is operator-configurable.
const (
	auditRetentionSchedule   = "30 3 * * *"
	rateLimitCleanupSchedule = "15 * * * *"
)

// CronService owns the recurring maintenance jobs: nightly rating
// repair, payment audit retention, and rate limit row cleanup.
type CronService struct {
	cron             *cron.Cron
	ratingService    *RatingService
	auditRepo        *database.PaymentAuditRepository
	rateLimitService *RateLimitService
	config           config.CronConfig
	logger           *logrus.Logger
}

func NewCronService(
	ratingService *RatingService,
	auditRepo *database.PaymentAuditRepository,
	rateLimitService *RateLimitService,
	cfg config.CronConfig,
	logger *logrus.Logger,
) *CronService {
	return &CronService{
		cron:             cron.New(),
		ratingService:    ratingService,
		auditRepo:        auditRepo,
		rateLimitService: rateLimitService,
		config:           cfg,
		logger:           logger,
	}
}

// Start registers every job and launches the scheduler. A malformed
// schedule fails the whole start so a typo cannot silently drop a job.
func (s *CronService) Start() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"rating_repair", s.config.RatingRepairSchedule, s.ratingRepairJob},
		{"audit_retention", auditRetentionSchedule, s.auditRetentionJob},
		{"rate_limit_cleanup", rateLimitCleanupSchedule, s.rateLimitCleanupJob},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.fn); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.name, job.spec, err)
		}
		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"schedule": job.spec,
		}).Debug("Job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop waits for any running job to finish before returning.
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// runJob wraps one execution with timing and outcome logging.
func (s *CronService) runJob(name string, job func(ctx context.Context) (int64, error)) {
	start := time.Now()
	count, err := job(context.Background())

	entry := s.logger.WithFields(logrus.Fields{
		"job":        name,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Scheduled job failed")
		return
	}
	entry.WithField("rows", count).Info("Scheduled job finished")
}

func (s *CronService) ratingRepairJob() {
	s.runJob("rating_repair", func(ctx context.Context) (int64, error) {
		repaired, err := s.ratingService.RepairAllRatings(ctx)
		return int64(repaired), err
	})
}

func (s *CronService) auditRetentionJob() {
	s.runJob("audit_retention", func(ctx context.Context) (int64, error) {
		return s.auditRepo.DeleteOlderThan(ctx, s.retention())
	})
}

func (s *CronService) rateLimitCleanupJob() {
	s.runJob("rate_limit_cleanup", func(ctx context.Context) (int64, error) {
		return s.rateLimitService.CleanupExpiredRateLimits()
	})
}

func (s *CronService) retention() time.Duration {
	return time.Duration(s.config.AuditRetentionDays) * 24 * time.Hour
}

// RunRatingRepairNow fires the nightly repair outside its schedule and
// reports its error, unlike the scheduled run which only logs it.
func (s *CronService) RunRatingRepairNow() error {
	repaired, err := s.ratingService.RepairAllRatings(context.Background())
	if err != nil {
		return err
	}
	s.logger.WithField("hotels", repaired).Info("Manual rating repair finished")
	return nil
}

// RunAuditRetentionNow prunes audit rows outside the nightly schedule.
func (s *CronService) RunAuditRetentionNow() error {
	deleted, err := s.auditRepo.DeleteOlderThan(context.Background(), s.retention())
	if err != nil {
		return err
	}
	s.logger.WithField("rows", deleted).Info("Manual audit retention finished")
	return nil
}

// GetJobStatus reports the scheduler's entries for the admin endpoint.
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
