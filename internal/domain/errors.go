package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details. Anything a service cannot classify is wrapped as
// ErrInternal at the service boundary.
var (
	// ErrValidation covers malformed input, duplicate email/username and
	// password-policy failures.
	ErrValidation = errors.New("validation failed")

	// ErrAuthenticationFailed covers bad credentials and bad TOTP codes.
	// The cause is never distinguished in the error itself.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidOrExpiredToken covers every secret or refresh-token miss:
	// unknown, expired, consumed, malformed, or blacklisted.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	ErrInactiveAccount  = errors.New("account inactive")
	ErrEmailNotVerified = errors.New("email not verified")

	ErrPermissionDenied    = errors.New("permission denied")
	ErrOperationNotAllowed = errors.New("operation not allowed")

	ErrNotFound = errors.New("not found")

	// ErrExternalService covers provider/network failures and timeouts on
	// outbound calls (OAuth exchange, profile fetch).
	ErrExternalService = errors.New("external service error")

	ErrInternal = errors.New("internal error")
)
