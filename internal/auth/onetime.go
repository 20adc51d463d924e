package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// OneTimeToken is a single-use proof of action authorization (email
// verification, password reset). Only Hash is persisted; Raw is sent to the
// user out-of-band and never stored.
type OneTimeToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

func NewOneTimeToken(ttl time.Duration) (*OneTimeToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating one-time token: %w", err)
	}

	raw := hex.EncodeToString(b)
	return &OneTimeToken{
		Raw:       raw,
		Hash:      HashOneTimeToken(raw),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// HashOneTimeToken maps a presented raw token back to its stored form.
func HashOneTimeToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
