// Package sms delivers transactional text messages to guests.
package sms

import "context"

// Sender is the provider surface the booking flow depends on. Exactly one
// implementation is wired at startup; everything else talks to this.
type Sender interface {
	// Send delivers body to the E.164 number in to and returns the
	// provider's message identifier for support lookups.
	Send(ctx context.Context, to, body string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}
