package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *TwilioGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewTwilioGateway(TwilioConfig{
		AccountSID: "AC00000000000000000000000000000001",
		AuthToken:  "secret-token",
		From:       "+15005550006",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
	})
}

func TestSend_QueuesMessage(t *testing.T) {
	var gotPath, gotUser, gotTo, gotFrom, gotBody string

	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123abc","status":"queued"}`))
	})

	sid, err := gateway.Send(context.Background(), "+94771234567", "Your booking is confirmed")
	require.NoError(t, err)

	assert.Equal(t, "SM123abc", sid)
	assert.Equal(t, "/2010-04-01/Accounts/AC00000000000000000000000000000001/Messages.json", gotPath)
	assert.Equal(t, "AC00000000000000000000000000000001", gotUser)
	assert.Equal(t, "+94771234567", gotTo)
	assert.Equal(t, "+15005550006", gotFrom)
	assert.Equal(t, "Your booking is confirmed", gotBody)
}

func TestSend_SurfacesProviderError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	})

	_, err := gateway.Send(context.Background(), "not-a-number", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Contains(t, err.Error(), "not a valid phone number")
}

func TestSend_RejectsMissingSID(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"queued"}`))
	})

	_, err := gateway.Send(context.Background(), "+94771234567", "hello")
	assert.ErrorContains(t, err, "missing message sid")
}

func TestSend_HonorsContextCancellation(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"sid":"SM1"}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gateway.Send(ctx, "+94771234567", "hello")
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	gateway := NewTwilioGateway(TwilioConfig{})
	assert.Equal(t, "twilio", gateway.Name())
}
