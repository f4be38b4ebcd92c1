package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Length limits apply to every password we hash. bcrypt reads at most 72 bytes.
const (
	MinPasswordLength = 4
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
)

// HashPassword returns a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. An empty hash never matches.
func VerifyPassword(password, hash string) bool {
	if hash == "" || password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsMalformedHash distinguishes corrupt stored hashes from wrong passwords.
func IsMalformedHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err != nil
}
