package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/stayhaven/booking-backend/internal/config"
	"github.com/stayhaven/booking-backend/internal/models"
)

// GatewayEnvironmentURLs maps environment names to processor API base URLs
var GatewayEnvironmentURLs = map[string]string{
	"sandbox":    "https://sandbox-api.staypay.lk",
	"production": "https://api.staypay.lk",
}

// PaymentGatewayService talks to the card processor. Outbound calls carry
// a per-request timeout and pass through a client-side rate limiter so a
// burst of checkouts cannot trip the processor's own limits.
type PaymentGatewayService struct {
	config  *config.PaymentConfig
	logger  *logrus.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// NewPaymentGatewayService creates a new payment gateway service
func NewPaymentGatewayService(cfg *config.PaymentConfig, logger *logrus.Logger) *PaymentGatewayService {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 20
	}

	return &PaymentGatewayService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// CreateIntentParams contains everything needed to open a payment intent
type CreateIntentParams struct {
	BookingID     uuid.UUID
	Amount        float64
	Currency      string
	Description   string
	CustomerName  string
	CustomerPhone string
}

// gatewayIntentRequest is the wire format for intent creation
type gatewayIntentRequest struct {
	Amount        int64                       `json:"amount"` // minor units
	Currency      string                      `json:"currency"`
	Description   string                      `json:"description,omitempty"`
	ReturnURL     string                      `json:"return_url,omitempty"`
	CustomerName  string                      `json:"customer_name,omitempty"`
	CustomerPhone string                      `json:"customer_phone,omitempty"`
	Metadata      models.GatewayEventMetadata `json:"metadata"`
}

// CreateIntent opens a new payment intent at the processor. The booking id
// rides along as metadata and comes back on every webhook event, which is
// what lets reconciliation find the booking again. Safe to call repeatedly
// for the same booking: each call opens a fresh intent.
func (s *PaymentGatewayService) CreateIntent(ctx context.Context, params *CreateIntentParams) (*models.GatewayIntent, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing API key")
	}

	request := &gatewayIntentRequest{
		Amount:        models.MinorUnits(params.Amount),
		Currency:      params.Currency,
		Description:   params.Description,
		ReturnURL:     s.config.ReturnURL,
		CustomerName:  params.CustomerName,
		CustomerPhone: params.CustomerPhone,
		Metadata: models.GatewayEventMetadata{
			BookingID: params.BookingID.String(),
		},
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": params.BookingID,
		"amount":     request.Amount,
		"currency":   params.Currency,
	}).Info("Creating gateway payment intent")

	var intent models.GatewayIntent
	if err := s.post(ctx, "/v1/payment_intents", request, &intent); err != nil {
		return nil, err
	}

	if intent.IntentID == "" {
		return nil, fmt.Errorf("gateway returned no intent id")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": params.BookingID,
		"intent_id":  intent.IntentID,
		"status":     intent.Status,
	}).Info("Gateway payment intent created")

	return &intent, nil
}

// CheckIntent queries the processor for the authoritative state of an
// intent. The client-redirect fallback path uses this instead of trusting
// anything the browser carried back.
func (s *PaymentGatewayService) CheckIntent(ctx context.Context, intentID string) (*models.GatewayIntent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := s.baseURL() + "/v1/payment_intents/" + intentID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.mapTransportError(err, "status check")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status check returned %d: %s", models.ErrGatewayRejected, resp.StatusCode, string(body))
	}

	var intent models.GatewayIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	return &intent, nil
}

// post sends a JSON request to the gateway and decodes the response
func (s *PaymentGatewayService) post(ctx context.Context, path string, payload, dest interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL()+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return s.mapTransportError(err, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status %d: %s", models.ErrGatewayRejected, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		s.logger.WithFields(logrus.Fields{
			"body":  string(body),
			"error": err.Error(),
		}).Error("Failed to parse gateway response")
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// mapTransportError turns timeouts into the sentinel callers retry on
func (s *PaymentGatewayService) mapTransportError(err error, operation string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		s.logger.WithError(err).WithField("operation", operation).Warn("Gateway call timed out")
		return fmt.Errorf("gateway %s timed out: %w", operation, models.ErrGatewayTimeout)
	}
	return fmt.Errorf("gateway %s failed: %w", operation, err)
}

// VerifySignature checks the webhook HMAC. The signature header carries
// hex-encoded HMAC-SHA256 of the raw body under the shared webhook secret.
// Returns false when no secret is configured: unverifiable events must
// never be processed.
func (s *PaymentGatewayService) VerifySignature(body []byte, signature string) bool {
	if s.config.WebhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseEvent validates and parses a webhook payload
func (s *PaymentGatewayService) ParseEvent(body []byte) (*models.GatewayEvent, error) {
	var event models.GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	// Basic validation
	if event.EventID == "" || event.IntentID == "" || event.Type == "" {
		return nil, fmt.Errorf("webhook missing required fields")
	}

	s.logger.WithFields(logrus.Fields{
		"event_id":  event.EventID,
		"type":      event.Type,
		"intent_id": event.IntentID,
		"amount":    event.AmountMinor,
	}).Info("Webhook payload parsed")

	return &event, nil
}

// baseURL resolves the processor endpoint for the configured environment
func (s *PaymentGatewayService) baseURL() string {
	if s.config.BaseURL != "" {
		return s.config.BaseURL
	}
	if url, ok := GatewayEnvironmentURLs[s.config.Environment]; ok {
		return url
	}
	return GatewayEnvironmentURLs["sandbox"]
}

// IsConfigured returns true if the gateway credentials are present
func (s *PaymentGatewayService) IsConfigured() bool {
	return s.config.APIKey != ""
}
