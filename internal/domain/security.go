package domain

import "time"

// SecretKind names the two pending-secret slots on a security profile.
type SecretKind string

const (
	SecretPasswordReset     SecretKind = "password_reset"
	SecretEmailVerification SecretKind = "email_verification"
)

// SecurityProfile is the one-to-one security companion of a User. It holds
// the two pending-secret slots and the TOTP state. Only secret hashes are
// ever persisted; raw values exist transiently for out-of-band delivery.
//
// A pending-secret slot is ABSENT when hash and expiry are empty, ACTIVE
// while the wall clock is before expiry, and EXPIRED after — expiry leaves
// the fields untouched. Consuming a secret clears hash and expiry in the
// same transaction as the caller's state-changing action.
type SecurityProfile struct {
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	LoginType string `json:"login_type" dynamodbav:"login_type"`

	PasswordResetHash   string `json:"-" dynamodbav:"password_reset_hash"`
	PasswordResetExpiry int64  `json:"-" dynamodbav:"password_reset_expiry"` // Unix seconds, 0 = absent

	EmailVerifyHash   string `json:"-" dynamodbav:"email_verify_hash"`
	EmailVerifyExpiry int64  `json:"-" dynamodbav:"email_verify_expiry"`

	TOTPSecret   string `json:"-" dynamodbav:"totp_secret"` // base32, empty unless mid-setup or enabled
	Is2FAEnabled bool   `json:"is_2fa_enabled" dynamodbav:"is_2fa_enabled"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Secret returns the stored hash and expiry for the given slot.
func (p *SecurityProfile) Secret(kind SecretKind) (hash string, expiry int64) {
	if kind == SecretPasswordReset {
		return p.PasswordResetHash, p.PasswordResetExpiry
	}
	return p.EmailVerifyHash, p.EmailVerifyExpiry
}

// SecretActive reports whether the slot holds a secret that has not expired
// at instant now. A consumed or never-generated slot is never active.
func (p *SecurityProfile) SecretActive(kind SecretKind, now time.Time) bool {
	hash, expiry := p.Secret(kind)
	return hash != "" && expiry > 0 && now.Unix() <= expiry
}

// RevokedToken is an append-only blacklist entry for a revoked refresh
// token, keyed by the token's jti. ExpiresAt mirrors the token's own expiry
// and doubles as the DynamoDB TTL so entries age out once the token would
// have died anyway.
type RevokedToken struct {
	TokenID   string    `json:"token_id" dynamodbav:"token_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"`
	RevokedAt time.Time `json:"revoked_at" dynamodbav:"revoked_at"`
}

// TokenPair is a full session: short-lived access token plus long-lived
// refresh token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
