package security

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes for DeriveKey
const (
	PurposeSessionToken = "nia session token v1"
	PurposeCSRF         = "nia csrf v1"
)

const derivedKeySize = 32

// DeriveKey expands the application secret into an independent key for one purpose
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret is required")
	}
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %q key: %w", purpose, err)
	}
	return key, nil
}

// RandomSecret returns a fresh secret for deployments without SESSION_SECRET.
// Sessions do not survive a restart when it is used.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, derivedKeySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return secret, nil
}
