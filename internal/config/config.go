package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// It is immutable after Load and injected into constructors; nothing reads
// the environment after startup.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	StepUpTokenTTL    time.Duration

	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration

	TOTPIssuer  string
	FrontendURL string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURI  string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users            string
	SecurityProfiles string
	Presence         string
	UniqueKeys       string
	TokenBlacklist   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:            getEnv("DYNAMO_TABLE_USERS", "users"),
			SecurityProfiles: getEnv("DYNAMO_TABLE_SECURITY_PROFILES", "security_profiles"),
			Presence:         getEnv("DYNAMO_TABLE_USER_PRESENCE", "user_presence"),
			UniqueKeys:       getEnv("DYNAMO_TABLE_UNIQUE_KEYS", "unique_keys"),
			TokenBlacklist:   getEnv("DYNAMO_TABLE_TOKEN_BLACKLIST", "token_blacklist"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		AccessTokenTTL:    time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRY_HOURS", 24)) * time.Hour,
		RefreshTokenTTL:   time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,
		StepUpTokenTTL:    time.Duration(getEnvInt("STEP_UP_TOKEN_EXPIRY_MINUTES", 5)) * time.Minute,

		PasswordResetTTL:     time.Duration(getEnvInt("PASSWORD_RESET_EXPIRY_HOURS", 1)) * time.Hour,
		EmailVerificationTTL: time.Duration(getEnvInt("EMAIL_VERIFICATION_EXPIRY_HOURS", 24)) * time.Hour,

		TOTPIssuer:  getEnv("TOTP_ISSUER_NAME", "IdentityAPI"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubRedirectURI:  getEnv("GITHUB_REDIRECT_URI", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
