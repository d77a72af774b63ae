package database

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stayhaven/booking-backend/internal/models"
)

// ReviewRepository handles database operations for the reviews table
type ReviewRepository struct {
	db DB
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create creates a new review. The unique index on (hotel_id, user_id)
// enforces one review per guest per hotel.
func (r *ReviewRepository) Create(review *models.Review) error {
	query := `
		INSERT INTO reviews (
			id, hotel_id, user_id, rating, comment
		) VALUES (
			$1, $2, $3, $4, $5
		)
		RETURNING created_at, updated_at
	`

	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}

	err := r.db.QueryRow(
		query,
		review.ID, review.HotelID, review.UserID, review.Rating, review.Comment,
	).Scan(&review.CreatedAt, &review.UpdatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return models.ErrDuplicateReview
	}
	return err
}

// GetByID retrieves a review by ID
func (r *ReviewRepository) GetByID(reviewID uuid.UUID) (*models.Review, error) {
	query := `
		SELECT id, hotel_id, user_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`

	review := &models.Review{}
	err := r.db.QueryRow(query, reviewID).Scan(
		&review.ID, &review.HotelID, &review.UserID,
		&review.Rating, &review.Comment,
		&review.CreatedAt, &review.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}

	return review, nil
}

// Update rewrites the rating and comment of the author's own review.
// Returns false when no row matched the id and author pair.
func (r *ReviewRepository) Update(reviewID, userID uuid.UUID, rating int, comment string) (bool, error) {
	query := `
		UPDATE reviews
		SET rating = $3, comment = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Exec(query, reviewID, userID, rating, comment)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// Delete removes the author's own review. Returns false when no row
// matched the id and author pair.
func (r *ReviewRepository) Delete(reviewID, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM reviews WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(query, reviewID, userID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// GetByHotelID retrieves reviews for a hotel, newest first
func (r *ReviewRepository) GetByHotelID(hotelID uuid.UUID, limit, offset int) ([]models.Review, error) {
	query := `
		SELECT id, hotel_id, user_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE hotel_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, hotelID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID, &review.HotelID, &review.UserID,
			&review.Rating, &review.Comment,
			&review.CreatedAt, &review.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}

	return reviews, rows.Err()
}

// ListRatings returns every rating currently stored for a hotel. Rating
// recomputes read this set rather than adjusting the stored average.
func (r *ReviewRepository) ListRatings(hotelID uuid.UUID) ([]int, error) {
	rows, err := r.db.Query(`SELECT rating FROM reviews WHERE hotel_id = $1`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := []int{}
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}
