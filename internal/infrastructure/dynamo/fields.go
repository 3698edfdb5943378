package dynamo

// DynamoDB attribute names used in update expressions across the repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldPasswordHash = "password_hash"
	fieldRole         = "role"
	fieldUsername     = "username"
	fieldIsVerified   = "is_verified"
	fieldIsActive     = "is_active"
	fieldAvatarURL    = "avatar_url"
	fieldUpdatedAt    = "updated_at"

	fieldLoginType           = "login_type"
	fieldPasswordResetHash   = "password_reset_hash"
	fieldPasswordResetExpiry = "password_reset_expiry"
	fieldEmailVerifyHash     = "email_verify_hash"
	fieldEmailVerifyExpiry   = "email_verify_expiry"
	fieldTOTPSecret          = "totp_secret"
	fieldIs2FAEnabled        = "is_2fa_enabled"
)

// GSI names.
const (
	indexEmail             = "email-index"
	indexPasswordResetHash = "password_reset_hash-index"
	indexEmailVerifyHash   = "email_verify_hash-index"
)
