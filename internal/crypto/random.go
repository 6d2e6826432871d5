package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// StateBytes is the entropy of an OAuth state value
const StateBytes = 24

// NewState returns a random URL-safe value for the OAuth state parameter
func NewState() (string, error) {
	b := make([]byte, StateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
