package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/cache"
	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/metrics"
	"github.com/stayhaven/booking-backend/internal/models"
)

// RatingService manages hotel reviews and the derived average rating.
//
// The stored average is always recomputed from the full review set after
// any review write. Incremental adjustment of the stored value would be
// cheaper but drifts the moment a write is retried or applied twice;
// recomputing makes every update idempotent, and the nightly repair job
// closes the gap if a recompute is ever missed.
type RatingService struct {
	reviewRepo  *database.ReviewRepository
	hotelRepo   *database.HotelRepository
	bookingRepo *database.BookingRepository
	userRepo    *database.UserRepository
	cache       *cache.Client
	cacheTTL    time.Duration
	logger      *logrus.Logger
}

// NewRatingService creates a new rating service
func NewRatingService(
	reviewRepo *database.ReviewRepository,
	hotelRepo *database.HotelRepository,
	bookingRepo *database.BookingRepository,
	userRepo *database.UserRepository,
	cacheClient *cache.Client,
	cfg config.RedisConfig,
	logger *logrus.Logger,
) *RatingService {
	return &RatingService{
		reviewRepo:  reviewRepo,
		hotelRepo:   hotelRepo,
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		cache:       cacheClient,
		cacheTTL:    cfg.RatingTTL,
		logger:      logger,
	}
}

// averageOf computes the mean of a rating set, 0 when there are none
func averageOf(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

// CreateReview posts a review for a hotel. The author must have completed
// a paid stay there, and each guest gets one review per hotel.
func (s *RatingService) CreateReview(ctx context.Context, userID, hotelID uuid.UUID, req *models.CreateReviewRequest) (*models.ReviewResponse, error) {
	// Step 1: Load the author, admins manage the platform but do not review
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin {
		return nil, models.ErrAdminNotAllowed
	}

	// Step 2: Validate the rating
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Step 3: The hotel must exist
	if _, err := s.hotelRepo.GetByID(hotelID); err != nil {
		return nil, err
	}

	// Step 4: Eligibility, a confirmed and paid booking at this hotel
	eligible, err := s.bookingRepo.HasCompletedStay(userID, hotelID)
	if err != nil {
		return nil, fmt.Errorf("failed to check review eligibility: %w", err)
	}
	if !eligible {
		return nil, models.ErrReviewNotEligible
	}

	// Step 5: Insert, the unique index rejects a second review per hotel
	review := &models.Review{
		HotelID: hotelID,
		UserID:  userID,
		Rating:  req.Rating,
		Comment: req.Comment,
	}
	if err := s.reviewRepo.Create(review); err != nil {
		return nil, err
	}

	// Step 6: Fold the new review into the hotel's average
	s.recomputeOrWarn(ctx, hotelID)

	s.logger.WithFields(logrus.Fields{
		"review_id": review.ID,
		"hotel_id":  hotelID,
		"user_id":   userID,
		"rating":    req.Rating,
	}).Info("Review created")

	return review.ToResponse(), nil
}

// UpdateReview edits the author's own review
func (s *RatingService) UpdateReview(ctx context.Context, reviewID, userID uuid.UUID, req *models.UpdateReviewRequest) (*models.ReviewResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	review, err := s.reviewRepo.GetByID(reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, models.ErrUnauthorized
	}

	changed, err := s.reviewRepo.Update(reviewID, userID, req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, models.ErrReviewNotFound
	}

	s.recomputeOrWarn(ctx, review.HotelID)

	updated, err := s.reviewRepo.GetByID(reviewID)
	if err != nil {
		return nil, err
	}
	return updated.ToResponse(), nil
}

// DeleteReview removes the author's own review
func (s *RatingService) DeleteReview(ctx context.Context, reviewID, userID uuid.UUID) error {
	review, err := s.reviewRepo.GetByID(reviewID)
	if err != nil {
		return err
	}
	if review.UserID != userID {
		return models.ErrUnauthorized
	}

	changed, err := s.reviewRepo.Delete(reviewID, userID)
	if err != nil {
		return err
	}
	if !changed {
		return models.ErrReviewNotFound
	}

	s.recomputeOrWarn(ctx, review.HotelID)

	s.logger.WithFields(logrus.Fields{
		"review_id": reviewID,
		"hotel_id":  review.HotelID,
	}).Info("Review deleted")

	return nil
}

// GetHotelRating returns the aggregate rating for a hotel, cache-aside
func (s *RatingService) GetHotelRating(ctx context.Context, hotelID uuid.UUID) (*models.HotelRating, error) {
	key := ratingCacheKey(hotelID)

	var cached models.HotelRating
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	if _, err := s.hotelRepo.GetByID(hotelID); err != nil {
		return nil, err
	}

	ratings, err := s.reviewRepo.ListRatings(hotelID)
	if err != nil {
		return nil, err
	}

	rating := &models.HotelRating{
		HotelID:       hotelID,
		AverageRating: averageOf(ratings),
		ReviewCount:   len(ratings),
	}

	s.cache.SetJSON(ctx, key, rating, s.cacheTTL)

	return rating, nil
}

// ListHotelReviews returns reviews for a hotel, newest first
func (s *RatingService) ListHotelReviews(hotelID uuid.UUID, limit, offset int) ([]models.ReviewResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	reviews, err := s.reviewRepo.GetByHotelID(hotelID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]models.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		responses = append(responses, *reviews[i].ToResponse())
	}
	return responses, nil
}

// RecomputeHotelRating rebuilds a hotel's average from its full review set
func (s *RatingService) RecomputeHotelRating(ctx context.Context, hotelID uuid.UUID) (float64, error) {
	ratings, err := s.reviewRepo.ListRatings(hotelID)
	if err != nil {
		return 0, fmt.Errorf("failed to load ratings: %w", err)
	}

	average := averageOf(ratings)

	if err := s.hotelRepo.UpdateAverageRating(hotelID, average); err != nil {
		return 0, err
	}

	s.cache.Delete(ctx, ratingCacheKey(hotelID))
	metrics.RatingRecomputes.Inc()

	return average, nil
}

// RepairAllRatings recomputes every hotel's average. The nightly job runs
// this to heal any average a missed recompute left stale.
func (s *RatingService) RepairAllRatings(ctx context.Context) (int, error) {
	hotelIDs, err := s.hotelRepo.ListIDs()
	if err != nil {
		return 0, fmt.Errorf("failed to list hotels: %w", err)
	}

	repaired := 0
	for _, hotelID := range hotelIDs {
		if _, err := s.RecomputeHotelRating(ctx, hotelID); err != nil {
			s.logger.WithError(err).WithField("hotel_id", hotelID).Error("Failed to recompute hotel rating")
			continue
		}
		repaired++
	}

	return repaired, nil
}

// recomputeOrWarn recomputes after a review write. A failed recompute
// leaves the stored average stale, not wrong data, and the nightly repair
// will catch it, so the review write itself is not rolled back.
func (s *RatingService) recomputeOrWarn(ctx context.Context, hotelID uuid.UUID) {
	if _, err := s.RecomputeHotelRating(ctx, hotelID); err != nil {
		s.logger.WithError(err).WithField("hotel_id", hotelID).Warn("Rating recompute failed, nightly repair will correct it")
	}
}

func ratingCacheKey(hotelID uuid.UUID) string {
	return fmt.Sprintf("rating:%s", hotelID)
}
