package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const resetTokenBytes = 20

// ResetToken is a freshly generated password-reset token. Raw goes to the
// user by email; only Hash and ExpiresAt are stored.
type ResetToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// GenerateResetToken returns a random token valid for ttl.
func GenerateResetToken(ttl time.Duration) (ResetToken, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	raw := hex.EncodeToString(b)
	return ResetToken{
		Raw:       raw,
		Hash:      HashToken(raw),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// HashToken is the one-way transform applied to reset tokens before they are
// stored or looked up.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
