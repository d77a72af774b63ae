package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomHex returns n random bytes from crypto/rand, hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read crypto/rand: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateServiceSecrets mints the JWT signing secret and the payment
// webhook secret for a fresh deployment. Both are 256-bit.
func GenerateServiceSecrets() (jwtSecret, webhookSecret string, err error) {
	if jwtSecret, err = RandomHex(32); err != nil {
		return "", "", fmt.Errorf("jwt secret: %w", err)
	}
	if webhookSecret, err = RandomHex(32); err != nil {
		return "", "", fmt.Errorf("webhook secret: %w", err)
	}
	return jwtSecret, webhookSecret, nil
}
