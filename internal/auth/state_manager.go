package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// stateBytes is the amount of entropy in a generated state
const stateBytes = 32

// GenerateState generates a cryptographically secure random state
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateState compares the state echoed by the provider with the one stored
// at flow entry. An empty stored state always fails.
func ValidateState(stored, received string) error {
	if stored == "" || received == "" {
		return ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(received)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
