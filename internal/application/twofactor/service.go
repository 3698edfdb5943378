package twofactor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/keylock"
	"github.com/go-identity-api/internal/pkg/totp"
)

// Service manages the TOTP enrollment lifecycle. Setup provisions a fresh
// secret, Enable confirms possession of it with a valid code, Disable tears
// it down. All three serialize per user so concurrent enrollment attempts
// can't interleave.
type Service interface {
	Setup(ctx context.Context, userID string) (*SetupResult, error)
	Enable(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, code string) error
}

// SetupResult carries the provisioned secret back to the caller once, at
// setup time. The secret is never readable again through the API.
type SetupResult struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type accountStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetProfile(ctx context.Context, userID string) (*domain.SecurityProfile, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}, removes ...string) error
}

type service struct {
	accounts accountStore
	locks    *keylock.KeyLock
	issuer   string
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceDeps struct {
	Accounts accountStore
	Locks    *keylock.KeyLock
	Issuer   string
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Locks == nil {
		deps.Locks = keylock.New()
	}
	return &service{
		accounts: deps.Accounts,
		locks:    deps.Locks,
		issuer:   deps.Issuer,
		logger:   deps.Logger.With("component", "twofactor"),
		now:      deps.Now,
	}
}

// Setup provisions a new TOTP secret for the user. Calling it again before
// Enable replaces the pending secret; calling it once 2FA is already enabled
// is rejected so an attacker with a stolen access token cannot silently swap
// the authenticator.
func (s *service) Setup(ctx context.Context, userID string) (*SetupResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.accounts.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Is2FAEnabled {
		return nil, fmt.Errorf("2FA is already enabled: %w", domain.ErrOperationNotAllowed)
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate TOTP secret: %w", domain.ErrInternal)
	}
	updates := map[string]interface{}{
		"totp_secret": secret,
		"updated_at":  s.now().UTC().Format(time.RFC3339),
	}
	if err := s.accounts.UpdateProfile(ctx, userID, updates); err != nil {
		return nil, err
	}

	s.logger.Info("2FA setup started", "user_id", userID)
	return &SetupResult{
		Secret:          secret,
		ProvisioningURI: totp.ProvisionURI(s.issuer, user.Email, secret),
	}, nil
}

// Enable turns 2FA on after the user proves they hold the secret by
// submitting a current code.
func (s *service) Enable(ctx context.Context, userID, code string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	profile, err := s.accounts.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.Is2FAEnabled {
		return fmt.Errorf("2FA is already enabled: %w", domain.ErrOperationNotAllowed)
	}
	if profile.TOTPSecret == "" {
		return fmt.Errorf("2FA setup has not been started: %w", domain.ErrValidation)
	}
	if !totp.Verify(profile.TOTPSecret, code, s.now()) {
		return fmt.Errorf("invalid TOTP code: %w", domain.ErrAuthenticationFailed)
	}

	updates := map[string]interface{}{
		"is_2fa_enabled": true,
		"updated_at":     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.accounts.UpdateProfile(ctx, userID, updates); err != nil {
		return err
	}
	s.logger.Info("2FA enabled", "user_id", userID)
	return nil
}

// Disable turns 2FA off. The current code is required so a hijacked session
// alone is not enough to weaken the account, and the secret is removed so
// re-enabling requires a fresh Setup.
func (s *service) Disable(ctx context.Context, userID, code string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	profile, err := s.accounts.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !profile.Is2FAEnabled {
		return fmt.Errorf("2FA is not enabled: %w", domain.ErrOperationNotAllowed)
	}
	if !totp.Verify(profile.TOTPSecret, code, s.now()) {
		return fmt.Errorf("invalid TOTP code: %w", domain.ErrAuthenticationFailed)
	}

	updates := map[string]interface{}{
		"is_2fa_enabled": false,
		"updated_at":     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.accounts.UpdateProfile(ctx, userID, updates, "totp_secret"); err != nil {
		return err
	}
	s.logger.Info("2FA disabled", "user_id", userID)
	return nil
}
