package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"zipngo/apperror"
)

// MinPasswordLength is the shortest password accepted on registration and
// password changes.
const MinPasswordLength = 8

// MaxPasswordLength is bcrypt's input limit in bytes.
const MaxPasswordLength = 72

// ValidatePasswordLength rejects passwords bcrypt cannot hash or that are
// too short to accept.
func ValidatePasswordLength(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return apperror.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordLength:
		return apperror.Validation(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
