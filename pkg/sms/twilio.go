package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	twilioDefaultBaseURL = "https://api.twilio.com"
	twilioAPIVersion     = "2010-04-01"
)

// TwilioConfig holds the credentials for the Twilio Messages API.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// From is the sending number or alphanumeric sender ID shown to the
	// guest.
	From string

	// BaseURL overrides the API host, used by tests.
	BaseURL string

	// Timeout bounds a single API call. Zero means 15 seconds.
	Timeout time.Duration
}

// TwilioGateway sends messages through Twilio's REST API. The API is a
// single form-encoded POST per message with basic auth, so the gateway
// holds no session state and is safe for concurrent use.
type TwilioGateway struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioGateway(cfg TwilioConfig) *TwilioGateway {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = twilioDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &TwilioGateway{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// twilioMessage is the subset of the Messages resource the gateway reads.
// Error fields are populated on 4xx/5xx responses.
type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"code"`
	ErrorMessage string `json:"message"`
}

// Send posts one message to the Messages endpoint. Twilio accepts the
// message for asynchronous delivery; a returned SID means queued, not
// delivered.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", g.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Messages.json",
		g.baseURL, twilioAPIVersion, url.PathEscape(g.accountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build message request: %w", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read message response: %w", err)
	}

	var msg twilioMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("parse message response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg.ErrorMessage != "" {
			return "", fmt.Errorf("twilio rejected message (code %d): %s", msg.ErrorCode, msg.ErrorMessage)
		}
		return "", fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}

	if msg.SID == "" {
		return "", fmt.Errorf("twilio response missing message sid")
	}
	return msg.SID, nil
}

func (g *TwilioGateway) Name() string {
	return "twilio"
}
