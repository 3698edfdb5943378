// Package password wraps the bcrypt credential scheme and the password
// acceptance policy.
package password

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minLength = 8

// Hash derives a bcrypt hash for storage.
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Check reports whether plain matches the stored bcrypt hash. An empty
// stored hash (federated account without a usable password) never matches.
func Check(plain, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}

// Validate enforces the acceptance policy: minimum length, at least one
// letter and one digit. Returns a human-readable reason on failure.
func Validate(plain string) error {
	if len(plain) < minLength {
		return fmt.Errorf("password must be at least %d characters", minLength)
	}
	var hasLetter, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("password must contain at least one letter and one digit")
	}
	return nil
}
