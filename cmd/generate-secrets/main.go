// Command generate-secrets mints the random material a deployment
// needs: the JWT signing secret, the payment webhook secret, and a
// maintenance key with its bcrypt hash. Output is .env formatted so it
// can be appended straight to a config file.
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/stayhaven/booking-backend/internal/utils"
)

func main() {
	jwtSecret, webhookSecret, err := utils.GenerateServiceSecrets()
	if err != nil {
		fatal(err)
	}

	maintenanceKey, err := utils.RandomHex(16)
	if err != nil {
		fatal(err)
	}
	maintenanceHash, err := bcrypt.GenerateFromPassword([]byte(maintenanceKey), bcrypt.DefaultCost)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("PAYMENT_WEBHOOK_SECRET=%s\n", webhookSecret)
	fmt.Printf("MAINTENANCE_KEY_HASH=%s\n", maintenanceHash)

	// The raw key goes to stderr so it stays out of a redirected .env.
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Hand this key to operators; only its hash is stored server-side:")
	fmt.Fprintf(os.Stderr, "X-Maintenance-Key: %s\n", maintenanceKey)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "generate-secrets:", err)
	os.Exit(1)
}
