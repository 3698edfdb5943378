// Package totp implements RFC 6238 time-based one-time passwords with the
// parameters every mainstream authenticator app defaults to: SHA-1, 6
// digits, 30-second period. Verification tolerates one time step of clock
// drift in either direction.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	secretBytes = 20
	digits      = 6
	period      = 30
	skew        = 1
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh base32-encoded shared secret.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI encoded into setup QR codes.
func ProvisionURI(issuer, account, secretBase32 string) string {
	label := url.PathEscape(issuer + ":" + account)
	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Code returns the code the secret produces at instant now. Authenticator
// apps compute exactly this; it exists server-side for enrollment tests and
// diagnostics.
func Code(secretBase32 string, now time.Time) (string, error) {
	secret, err := b32.DecodeString(strings.ToUpper(secretBase32))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("empty totp secret")
	}
	return hotpCode(secret, now.Unix()/period), nil
}

// Verify checks code against the shared secret at instant now, accepting
// codes from the adjacent time steps. Malformed codes or secrets simply
// fail verification.
func Verify(secretBase32, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != digits || !isNumeric(trimmed) {
		return false
	}
	secret, err := b32.DecodeString(strings.ToUpper(secretBase32))
	if err != nil || len(secret) == 0 {
		return false
	}

	baseCounter := now.Unix() / period
	for step := int64(-skew); step <= skew; step++ {
		counter := baseCounter + step
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotpCode(secret, counter)), []byte(trimmed)) == 1 {
			return true
		}
	}
	return false
}

func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
