package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/database"
	"github.com/stayhaven/booking-backend/internal/middleware"
	"github.com/stayhaven/booking-backend/internal/services"
)

const testWebhookSecret = "test-webhook-secret"

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return sqlxDB, mock
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupPaymentTestHandler wires a PaymentHandler over the mock database
func setupPaymentTestHandler(db *sqlx.DB) *PaymentHandler {
	logger := newTestLogger()
	pg := &database.PostgresDB{DB: db}

	paymentRepo := database.NewPaymentRepository(pg)
	bookingRepo := database.NewBookingRepository(pg)
	hotelRepo := database.NewHotelRepository(pg)
	userRepo := database.NewUserRepository(pg)
	auditRepo := database.NewPaymentAuditRepository(pg, logger)

	gateway := services.NewPaymentGatewayService(&config.PaymentConfig{
		Environment:    "sandbox",
		APIKey:         "sk_test_123",
		WebhookSecret:  testWebhookSecret,
		RequestTimeout: 5 * time.Second,
	}, logger)

	availability := services.NewAvailabilityService(hotelRepo, bookingRepo, nil, config.RedisConfig{}, logger)

	paymentService := services.NewPaymentService(
		paymentRepo, bookingRepo, hotelRepo, userRepo, auditRepo,
		gateway, availability, nil, "dev", logger,
	)

	return NewPaymentHandler(paymentService, newTestLogger())
}

// signBody computes the signature the gateway would attach to a webhook
func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func performWebhook(handler *PaymentHandler, body []byte, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/payments/webhook", handler.PaymentWebhook)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)
	return w
}

func TestPaymentWebhook_InvalidSignature_StillAcknowledged(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	// The rejection is recorded in the audit log
	mock.ExpectExec("INSERT INTO payment_audits").WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"event_id":"evt_1","type":"payment_intent.succeeded","intent_id":"pi_123","amount":60000,"currency":"LKR"}`)
	w := performWebhook(handler, body, "deadbeef")

	// The gateway must see a 200 or it will retry forever
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["acknowledged"])
	assert.Equal(t, "webhook rejected", response["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentWebhook_MissingSignature_StillAcknowledged(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	mock.ExpectExec("INSERT INTO payment_audits").WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"event_id":"evt_1","type":"payment_intent.succeeded","intent_id":"pi_123"}`)
	w := performWebhook(handler, body, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acknowledged")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentWebhook_MalformedPayload_StillAcknowledged(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	// Signature is valid but the body is not a parseable event
	mock.ExpectExec("INSERT INTO payment_audits").WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"not": "an event"}`)
	w := performWebhook(handler, body, signBody(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acknowledged")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentWebhook_UnknownIntent_Acknowledged(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	// Delivery is recorded, the lookup misses, the miss is recorded
	mock.ExpectExec("INSERT INTO payment_audits").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WithArgs("pi_unknown").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO payment_audits").WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"event_id":"evt_2","type":"payment_intent.succeeded","intent_id":"pi_unknown","amount":60000,"currency":"LKR"}`)
	w := performWebhook(handler, body, signBody(body))

	// Unmatched events are audited and acknowledged, never an error
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "webhook processed", response["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentIntent_NoUserContext(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/payment-intent", nil)
	c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}

	handler.CreatePaymentIntent(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePaymentIntent_InvalidBookingID(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.UserContextKey, middleware.UserContext{UserID: uuid.New(), Email: "guest@example.com"})
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/bookings/not-a-uuid/payment-intent", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	handler.CreatePaymentIntent(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "INVALID_BOOKING_ID", response.Code)
}

func TestConfirmPayment_NoUserContext(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/confirm-payment", nil)
	c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}

	handler.ConfirmPayment(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfirmPayment_InvalidBookingID(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.UserContextKey, middleware.UserContext{UserID: uuid.New(), Email: "guest@example.com"})
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/bookings/pi_123/confirm-payment", nil)
	c.Params = gin.Params{{Key: "id", Value: "pi_123"}}

	handler.ConfirmPayment(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "INVALID_BOOKING_ID", response.Code)
}

func TestListPayments_InvalidBookingID(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	handler := setupPaymentTestHandler(db)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.UserContextKey, middleware.UserContext{UserID: uuid.New(), Email: "guest@example.com"})
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/bookings/xyz/payments", nil)
	c.Params = gin.Params{{Key: "id", Value: "xyz"}}

	handler.ListPayments(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
