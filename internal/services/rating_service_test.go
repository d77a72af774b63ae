package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/models"
)

func setupRatingTest(t *testing.T) (*RatingService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	postgresDB := &database.PostgresDB{DB: sqlxDB}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reviewRepo := database.NewReviewRepository(postgresDB)
	hotelRepo := database.NewHotelRepository(postgresDB)
	bookingRepo := database.NewBookingRepository(postgresDB)
	userRepo := database.NewUserRepository(postgresDB)

	service := NewRatingService(reviewRepo, hotelRepo, bookingRepo, userRepo, nil, config.RedisConfig{}, logger)

	cleanup := func() {
		db.Close()
	}

	return service, mock, cleanup
}

func reviewRows(r *models.Review) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "hotel_id", "user_id", "rating", "comment", "created_at", "updated_at",
	}).AddRow(r.ID.String(), r.HotelID.String(), r.UserID.String(),
		r.Rating, r.Comment, time.Now(), time.Now())
}

func ratingsRows(ratings ...int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"rating"})
	for _, r := range ratings {
		rows.AddRow(r)
	}
	return rows
}

func TestAverageOf(t *testing.T) {
	assert.Equal(t, 0.0, averageOf(nil))
	assert.Equal(t, 0.0, averageOf([]int{}))
	assert.Equal(t, 4.0, averageOf([]int{5, 3}))
	assert.Equal(t, 3.0, averageOf([]int{3}))
	assert.InDelta(t, 4.333, averageOf([]int{5, 4, 4}), 0.001)
}

func TestCreateReview_Success(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	hotelID := uuid.New()
	req := &models.CreateReviewRequest{Rating: 5, Comment: "Spotless rooms, great breakfast"}

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRows(userID, false))
	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRows(hotelID, 100.00, 10))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID, hotelID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(sqlmock.AnyArg(), hotelID, userID, 5, req.Comment).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	// The write folds into the recomputed average: existing 3 plus new 5
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelID).
		WillReturnRows(ratingsRows(5, 3))
	mock.ExpectExec("UPDATE hotels").
		WithArgs(hotelID, 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := service.CreateReview(context.Background(), userID, hotelID, req)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Rating)
	assert.Equal(t, hotelID, resp.HotelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReview_AdminBlocked(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	adminID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(adminID).
		WillReturnRows(guestRows(adminID, true))

	_, err := service.CreateReview(context.Background(), adminID, uuid.New(), &models.CreateReviewRequest{Rating: 4})
	assert.ErrorIs(t, err, models.ErrAdminNotAllowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReview_RatingOutOfBounds(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRows(userID, false))

	_, err := service.CreateReview(context.Background(), userID, uuid.New(), &models.CreateReviewRequest{Rating: 6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 5")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReview_NoCompletedStay(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	hotelID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRows(userID, false))
	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRows(hotelID, 100.00, 10))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID, hotelID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := service.CreateReview(context.Background(), userID, hotelID, &models.CreateReviewRequest{Rating: 4})
	assert.ErrorIs(t, err, models.ErrReviewNotEligible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReview_DuplicatePerHotel(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	hotelID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRows(userID, false))
	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRows(hotelID, 100.00, 10))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID, hotelID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(sqlmock.AnyArg(), hotelID, userID, 4, "").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := service.CreateReview(context.Background(), userID, hotelID, &models.CreateReviewRequest{Rating: 4})
	assert.ErrorIs(t, err, models.ErrDuplicateReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReview_RecomputesAverage(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	review := &models.Review{
		ID:      uuid.New(),
		HotelID: uuid.New(),
		UserID:  userID,
		Rating:  5,
		Comment: "Great stay",
	}

	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs(review.ID).
		WillReturnRows(reviewRows(review))
	mock.ExpectExec("UPDATE reviews").
		WithArgs(review.ID, userID, 3, "Second visit was worse").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(review.HotelID).
		WillReturnRows(ratingsRows(3))
	mock.ExpectExec("UPDATE hotels").
		WithArgs(review.HotelID, 3.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	edited := *review
	edited.Rating = 3
	edited.Comment = "Second visit was worse"
	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs(review.ID).
		WillReturnRows(reviewRows(&edited))

	resp, err := service.UpdateReview(context.Background(), review.ID, userID, &models.UpdateReviewRequest{
		Rating:  3,
		Comment: "Second visit was worse",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReview_NotAuthor(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	review := &models.Review{
		ID:      uuid.New(),
		HotelID: uuid.New(),
		UserID:  uuid.New(),
		Rating:  5,
	}

	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs(review.ID).
		WillReturnRows(reviewRows(review))

	_, err := service.UpdateReview(context.Background(), review.ID, uuid.New(), &models.UpdateReviewRequest{Rating: 1})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReview_ZeroesEmptySet(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	review := &models.Review{
		ID:      uuid.New(),
		HotelID: uuid.New(),
		UserID:  userID,
		Rating:  5,
	}

	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs(review.ID).
		WillReturnRows(reviewRows(review))
	mock.ExpectExec("DELETE FROM reviews").
		WithArgs(review.ID, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Last review gone: the stored average resets to zero
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(review.HotelID).
		WillReturnRows(ratingsRows())
	mock.ExpectExec("UPDATE hotels").
		WithArgs(review.HotelID, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := service.DeleteReview(context.Background(), review.ID, userID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReview_GoneAfterRace(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	userID := uuid.New()
	review := &models.Review{
		ID:      uuid.New(),
		HotelID: uuid.New(),
		UserID:  userID,
		Rating:  4,
	}

	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs(review.ID).
		WillReturnRows(reviewRows(review))
	mock.ExpectExec("DELETE FROM reviews").
		WithArgs(review.ID, userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := service.DeleteReview(context.Background(), review.ID, userID)
	assert.ErrorIs(t, err, models.ErrReviewNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHotelRating_ComputesFromReviews(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	hotelID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRows(hotelID, 100.00, 10))
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelID).
		WillReturnRows(ratingsRows(5, 3))

	rating, err := service.GetHotelRating(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rating.AverageRating)
	assert.Equal(t, 2, rating.ReviewCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHotelRating_NoReviews(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	hotelID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRows(hotelID, 100.00, 10))
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelID).
		WillReturnRows(ratingsRows())

	rating, err := service.GetHotelRating(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rating.AverageRating)
	assert.Equal(t, 0, rating.ReviewCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeHotelRating_TracksReviewSet(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	hotelID := uuid.New()

	// Two reviews of 5 and 3 average to 4.0
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelID).
		WillReturnRows(ratingsRows(5, 3))
	mock.ExpectExec("UPDATE hotels").
		WithArgs(hotelID, 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	average, err := service.RecomputeHotelRating(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, average)

	// After the 5 is removed only the 3 remains
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelID).
		WillReturnRows(ratingsRows(3))
	mock.ExpectExec("UPDATE hotels").
		WithArgs(hotelID, 3.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	average, err = service.RecomputeHotelRating(context.Background(), hotelID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, average)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepairAllRatings(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	hotelA := uuid.New()
	hotelB := uuid.New()

	mock.ExpectQuery("SELECT id FROM hotels").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(hotelA.String()).AddRow(hotelB.String()))

	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelA).
		WillReturnRows(ratingsRows(4, 4))
	mock.ExpectExec("UPDATE hotels").
		WithArgs(hotelA, 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(hotelB).
		WillReturnRows(ratingsRows())
	mock.ExpectExec("UPDATE hotels").
		WithArgs(hotelB, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repaired, err := service.RepairAllRatings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHotelReviews_ClampsPaging(t *testing.T) {
	service, mock, cleanup := setupRatingTest(t)
	defer cleanup()

	hotelID := uuid.New()
	review := &models.Review{
		ID:      uuid.New(),
		HotelID: hotelID,
		UserID:  uuid.New(),
		Rating:  4,
		Comment: "Good value",
	}

	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs(hotelID, 20, 0).
		WillReturnRows(reviewRows(review))

	responses, err := service.ListHotelReviews(hotelID, 0, -5)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, review.ID, responses[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
