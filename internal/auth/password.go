package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
)

const minPasswordLength = 8

var ErrWeakPassword = apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))

// HashPassword bcrypt-hashes a password after checking its length. bcrypt ignores
// input past 72 bytes, so longer passwords are rejected rather than truncated.
func HashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	if len(password) > 72 {
		return "", apperr.Validation("password is too long")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("auth: verify password: %w", err)
}
