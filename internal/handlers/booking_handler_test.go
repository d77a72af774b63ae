package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/middleware"
	"github.com/stayhaven/booking-backend/internal/models"
	"github.com/stayhaven/booking-backend/internal/services"
)

const testClientIP = "203.0.113.9"

// setupBookingTestHandler wires a BookingHandler over the mock database
func setupBookingTestHandler(db *sqlx.DB) *BookingHandler {
	logger := newTestLogger()
	pg := &database.PostgresDB{DB: db}

	bookingRepo := database.NewBookingRepository(pg)
	hotelRepo := database.NewHotelRepository(pg)
	userRepo := database.NewUserRepository(pg)
	availability := services.NewAvailabilityService(hotelRepo, bookingRepo, nil, config.RedisConfig{}, logger)
	rateLimiter := services.NewRateLimitService(pg)

	bookingService := services.NewBookingService(bookingRepo, hotelRepo, userRepo, availability, rateLimiter, config.BookingConfig{
		CancellationCutoffDays: 7,
		PendingExpiryMinutes:   30,
		MaxRoomsPerBooking:     5,
		DefaultCurrency:        "USD",
	}, logger)

	return NewBookingHandler(bookingService, newTestLogger())
}

func guestRow(userID uuid.UUID, isAdmin bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "is_admin", "created_at", "updated_at",
	}).AddRow(userID.String(), "Test Guest", "guest@example.com", "+94771234567", isAdmin,
		time.Now(), time.Now())
}

func hotelRow(hotelID uuid.UUID, pricePerNight float64, totalRooms int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "city", "owner_id", "price_per_night", "total_rooms",
		"amenities", "average_rating", "created_at", "updated_at",
	}).AddRow(hotelID.String(), "Cinnamon Grand", "Colombo", uuid.New().String(),
		pricePerNight, totalRooms, `{"wifi","pool"}`, 4.2, time.Now(), time.Now())
}

func bookingRows(bookings ...*models.Booking) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "hotel_id",
		"check_in_date", "check_out_date", "number_of_rooms", "nights",
		"price_per_night", "total_price", "currency",
		"status", "payment_status", "payment_intent_id", "contact_phone",
		"confirmed_at", "cancelled_at", "created_at", "updated_at",
	})
	for _, b := range bookings {
		rows.AddRow(
			b.ID.String(), b.UserID.String(), b.HotelID.String(),
			b.CheckInDate, b.CheckOutDate, b.NumberOfRooms, b.Nights,
			b.PricePerNight, b.TotalPrice, b.Currency,
			string(b.Status), string(b.PaymentStatus), nil, nil,
			nil, nil, b.CreatedAt, b.UpdatedAt,
		)
	}
	return rows
}

func storedBooking(bookingID, userID uuid.UUID, checkIn time.Time, status models.BookingStatus) *models.Booking {
	return &models.Booking{
		ID:            bookingID,
		UserID:        userID,
		HotelID:       uuid.New(),
		CheckInDate:   checkIn,
		CheckOutDate:  checkIn.AddDate(0, 0, 3),
		NumberOfRooms: 2,
		Nights:        3,
		PricePerNight: 150.00,
		TotalPrice:    900.00,
		Currency:      "USD",
		Status:        status,
		PaymentStatus: models.BookingPaymentPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// newBookingContext builds a test context with an authenticated guest
func newBookingContext(w *httptest.ResponseRecorder, userID uuid.UUID, method, target string, body []byte) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.UserContextKey, middleware.UserContext{UserID: userID, Email: "guest@example.com"})
	c.Request, _ = http.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("X-Real-IP", testClientIP)
	return c
}

// ============================================================================
// CREATE BOOKING
// ============================================================================

func TestCreateBookingHandler_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	hotelID := uuid.New()
	checkIn := time.Now().UTC().AddDate(0, 0, 30).Format("2006-01-02")
	checkOut := time.Now().UTC().AddDate(0, 0, 33).Format("2006-01-02")

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRow(userID, false))
	mock.ExpectQuery("SELECT COUNT(.+) FROM booking_rate_limits").
		WithArgs(userID.String(), "user", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "created_at"}).AddRow(0, time.Now()))
	mock.ExpectQuery("SELECT COUNT(.+) FROM booking_rate_limits").
		WithArgs(testClientIP, "ip", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "created_at"}).AddRow(0, time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRow(hotelID, 150.00, 20))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(hotelID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(5))
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO booking_rate_limits").
		WithArgs(userID.String(), "user").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_rate_limits").
		WithArgs(testClientIP, "ip").
		WillReturnResult(sqlmock.NewResult(2, 1))

	body, _ := json.Marshal(models.CreateBookingRequest{
		HotelID:       hotelID.String(),
		CheckInDate:   checkIn,
		CheckOutDate:  checkOut,
		NumberOfRooms: 2,
	})

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodPost, "/api/v1/bookings", body)

	handler.CreateBooking(c)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var response models.BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, hotelID, response.HotelID)
	assert.Equal(t, checkIn, response.CheckInDate)
	assert.Equal(t, 3, response.Nights)
	assert.Equal(t, 900.00, response.TotalPrice) // 150 per night x 2 rooms x 3 nights
	assert.Equal(t, models.BookingStatusPending, response.Status)
	assert.Equal(t, models.BookingPaymentPending, response.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingHandler_NoUserContext(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/bookings", nil)

	handler.CreateBooking(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBookingHandler_InvalidBody(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	w := httptest.NewRecorder()
	c := newBookingContext(w, uuid.New(), http.MethodPost, "/api/v1/bookings", []byte(`{"hotel_id":"not-a-uuid"}`))

	handler.CreateBooking(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestCreateBookingHandler_AdminNotAllowed(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	hotelID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRow(userID, true))

	body, _ := json.Marshal(models.CreateBookingRequest{
		HotelID:       hotelID.String(),
		CheckInDate:   time.Now().UTC().AddDate(0, 0, 30).Format("2006-01-02"),
		CheckOutDate:  time.Now().UTC().AddDate(0, 0, 32).Format("2006-01-02"),
		NumberOfRooms: 1,
	})

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodPost, "/api/v1/bookings", body)

	handler.CreateBooking(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ADMIN_NOT_ALLOWED")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingHandler_InsufficientAvailability(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	hotelID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(userID).
		WillReturnRows(guestRow(userID, false))
	mock.ExpectQuery("SELECT COUNT(.+) FROM booking_rate_limits").
		WithArgs(userID.String(), "user", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "created_at"}).AddRow(0, time.Now()))
	mock.ExpectQuery("SELECT COUNT(.+) FROM booking_rate_limits").
		WithArgs(testClientIP, "ip", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "created_at"}).AddRow(0, time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM hotels").
		WithArgs(hotelID).
		WillReturnRows(hotelRow(hotelID, 150.00, 20))
	// 19 of 20 rooms already committed, only 1 left
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(hotelID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(19))

	body, _ := json.Marshal(models.CreateBookingRequest{
		HotelID:       hotelID.String(),
		CheckInDate:   time.Now().UTC().AddDate(0, 0, 30).Format("2006-01-02"),
		CheckOutDate:  time.Now().UTC().AddDate(0, 0, 33).Format("2006-01-02"),
		NumberOfRooms: 2,
	})

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodPost, "/api/v1/bookings", body)

	handler.CreateBooking(c)

	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "INSUFFICIENT_AVAILABILITY", response["code"])
	assert.Equal(t, float64(2), response["requested"])
	assert.Equal(t, float64(1), response["available"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

func TestGetBookingHandler_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	bookingID := uuid.New()
	booking := storedBooking(bookingID, userID, time.Now().AddDate(0, 0, 30), models.BookingStatusConfirmed)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(bookingRows(booking))

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodGet, "/api/v1/bookings/"+bookingID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}

	handler.GetBooking(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response models.BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, bookingID, response.ID)
	assert.Equal(t, models.BookingStatusConfirmed, response.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingHandler_NotOwner(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	bookingID := uuid.New()
	booking := storedBooking(bookingID, uuid.New(), time.Now().AddDate(0, 0, 30), models.BookingStatusConfirmed)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(bookingRows(booking))

	w := httptest.NewRecorder()
	c := newBookingContext(w, uuid.New(), http.MethodGet, "/api/v1/bookings/"+bookingID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}

	handler.GetBooking(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_RESOURCE_OWNER")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingHandler_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	bookingID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnError(sql.ErrNoRows)

	w := httptest.NewRecorder()
	c := newBookingContext(w, uuid.New(), http.MethodGet, "/api/v1/bookings/"+bookingID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}

	handler.GetBooking(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "BOOKING_NOT_FOUND")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingHandler_InvalidID(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	w := httptest.NewRecorder()
	c := newBookingContext(w, uuid.New(), http.MethodGet, "/api/v1/bookings/xyz", nil)
	c.Params = gin.Params{{Key: "id", Value: "xyz"}}

	handler.GetBooking(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_BOOKING_ID")
}

func TestListMyBookingsHandler(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	first := storedBooking(uuid.New(), userID, time.Now().AddDate(0, 0, 30), models.BookingStatusPending)
	second := storedBooking(uuid.New(), userID, time.Now().AddDate(0, 0, 60), models.BookingStatusConfirmed)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(userID, 2, 0).
		WillReturnRows(bookingRows(first, second))

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodGet, "/api/v1/bookings?limit=2&offset=0", nil)

	handler.ListMyBookings(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Bookings []models.BookingResponse `json:"bookings"`
		Limit    int                      `json:"limit"`
		Offset   int                      `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Bookings, 2)
	assert.Equal(t, 2, response.Limit)
	assert.Equal(t, first.ID, response.Bookings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// CANCEL BOOKING
// ============================================================================

func TestCancelBookingHandler_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	bookingID := uuid.New()
	// Check-in is 30 days out, well clear of the 7 day cutoff
	booking := storedBooking(bookingID, userID, time.Now().AddDate(0, 0, 30), models.BookingStatusPending)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(bookingRows(booking))
	mock.ExpectExec("UPDATE bookings").
		WithArgs(bookingID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cancelled := storedBooking(bookingID, userID, booking.CheckInDate, models.BookingStatusCancelled)
	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(bookingRows(cancelled))

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}

	handler.CancelBooking(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Message string                 `json:"message"`
		Booking models.BookingResponse `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Booking cancelled successfully", response.Message)
	assert.Equal(t, models.BookingStatusCancelled, response.Booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingHandler_WindowClosed(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	bookingID := uuid.New()
	// Check-in in 2 days, inside the 7 day cutoff
	booking := storedBooking(bookingID, userID, time.Now().AddDate(0, 0, 2), models.BookingStatusConfirmed)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(bookingRows(booking))

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}

	handler.CancelBooking(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CANCELLATION_WINDOW_CLOSED")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingHandler_AlreadyCancelled(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupBookingTestHandler(db)

	userID := uuid.New()
	bookingID := uuid.New()
	booking := storedBooking(bookingID, userID, time.Now().AddDate(0, 0, 30), models.BookingStatusCancelled)

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(bookingRows(booking))

	w := httptest.NewRecorder()
	c := newBookingContext(w, userID, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}

	handler.CancelBooking(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_CANCELLED")
	assert.NoError(t, mock.ExpectationsWereMet())
}
