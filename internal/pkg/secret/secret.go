// Package secret generates and verifies single-use opaque secrets: the raw
// value is delivered out-of-band and only its digest is persisted. The raw
// value's 256 bits of entropy carry the security, so a fast deterministic
// digest is used rather than a slow password-hash scheme.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const rawBytes = 32

// Generate returns a URL-safe raw secret and the hex SHA-256 digest to
// persist in its place.
func Generate() (raw, hash string, err error) {
	b := make([]byte, rawBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate secret: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, Hash(raw), nil
}

// Hash returns the hex SHA-256 digest of raw.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of raw and compares it against storedHash in
// constant time. Malformed input simply fails verification.
func Verify(raw, storedHash string) bool {
	if raw == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Hash(raw)), []byte(storedHash)) == 1
}
