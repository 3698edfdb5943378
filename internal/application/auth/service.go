package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	"github.com/go-identity-api/internal/pkg/id"
	"github.com/go-identity-api/internal/pkg/keylock"
	"github.com/go-identity-api/internal/pkg/password"
	"github.com/go-identity-api/internal/pkg/secret"
	"github.com/go-identity-api/internal/pkg/totp"
	"github.com/go-identity-api/internal/pkg/validate"
)

// Service orchestrates registration, credential login, the self-service
// password flows, email verification and role changes.
type Service interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*LoginResult, error)
	VerifyStepUp(ctx context.Context, userID, code string) (*domain.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	VerifyEmail(ctx context.Context, rawToken string) error
	ResendVerification(ctx context.Context, email string) error
	ChangeRole(ctx context.Context, actorID, targetID, newRole string) (*domain.User, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

// LoginResult is either a full session or a step-up challenge, never both.
// When the account has 2FA enabled the caller gets only the short-lived
// step-up token and must come back through VerifyStepUp with a TOTP code.
type LoginResult struct {
	RequiresStepUp bool              `json:"requires_2fa"`
	StepUpToken    string            `json:"step_up_token,omitempty"`
	Tokens         *domain.TokenPair `json:"tokens,omitempty"`
	User           *domain.User      `json:"user,omitempty"`
}

type accountStore interface {
	Create(ctx context.Context, u *domain.User, p *domain.SecurityProfile, pr *domain.Presence) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	GetProfile(ctx context.Context, userID string) (*domain.SecurityProfile, error)
	SetPendingSecret(ctx context.Context, userID string, kind domain.SecretKind, hash string, expiry int64) error
	FindProfileBySecretHash(ctx context.Context, kind domain.SecretKind, hash string) (*domain.SecurityProfile, error)
	ConsumePasswordReset(ctx context.Context, userID, secretHash, newPasswordHash string) error
	ConsumeEmailVerification(ctx context.Context, userID, secretHash string) error
}

type sessionIssuer interface {
	IssueInitial(ctx context.Context, u *domain.User) (*domain.TokenPair, error)
	IssueStepUp(ctx context.Context, u *domain.User) (string, error)
}

type service struct {
	accounts  accountStore
	sessions  sessionIssuer
	notifier  smtp.Notifier
	locks     *keylock.KeyLock
	logger    *slog.Logger
	now       func() time.Time
	frontend  string
	resetTTL  time.Duration
	verifyTTL time.Duration
}

type ServiceDeps struct {
	Accounts    accountStore
	Sessions    sessionIssuer
	Notifier    smtp.Notifier
	Locks       *keylock.KeyLock
	Logger      *slog.Logger
	Now         func() time.Time
	FrontendURL string
	ResetTTL    time.Duration
	VerifyTTL   time.Duration
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
		accounts:  deps.Accounts,
		sessions:  deps.Sessions,
		notifier:  deps.Notifier,
		locks:     deps.Locks,
		logger:    deps.Logger.With("component", "auth"),
		now:       deps.Now,
		frontend:  deps.FrontendURL,
		resetTTL:  deps.ResetTTL,
		verifyTTL: deps.VerifyTTL,
	}
}

// Register creates the account, its security profile, its presence side
// profile and a pending email verification secret in one transactional
// unit, then sends the verification email. The email is fire-and-forget: a
// delivery failure never unwinds the already-committed account.
func (s *service) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", domain.ErrInternal)
	}
	rawSecret, secretHash, err := secret.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate verification secret: %w", domain.ErrInternal)
	}

	now := s.now().UTC()
	user := &domain.User{
		UserID:       id.New(),
		Email:        domain.NormalizeEmail(req.Email),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &domain.SecurityProfile{
		UserID:            user.UserID,
		LoginType:         domain.LoginEmailPassword,
		EmailVerifyHash:   secretHash,
		EmailVerifyExpiry: now.Add(s.verifyTTL).Unix(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.accounts.Create(ctx, user, profile, domain.NewPresence(user.UserID, now)); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.UserID)

	go s.sendVerificationEmail(user, rawSecret)
	return user, nil
}

// Login runs the credential gates in a fixed order so the caller always
// learns the most specific failure it is entitled to: bad credentials first,
// then account state, then the 2FA fork.
func (s *service) Login(ctx context.Context, req *domain.LoginRequest) (*LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}

	user, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrAuthenticationFailed)
		}
		return nil, err
	}
	if !password.Check(req.Password, user.PasswordHash) {
		s.logger.Warn("failed login attempt", "user_id", user.UserID)
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrAuthenticationFailed)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrInactiveAccount)
	}
	if !user.IsVerified {
		return nil, fmt.Errorf("email address is not verified: %w", domain.ErrEmailNotVerified)
	}

	profile, err := s.accounts.GetProfile(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if profile.Is2FAEnabled {
		stepUp, err := s.sessions.IssueStepUp(ctx, user)
		if err != nil {
			return nil, err
		}
		s.logger.Info("login requires 2FA", "user_id", user.UserID)
		return &LoginResult{RequiresStepUp: true, StepUpToken: stepUp}, nil
	}

	tokens, err := s.sessions.IssueInitial(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", user.UserID)
	return &LoginResult{Tokens: tokens, User: user}, nil
}

// VerifyStepUp completes a 2FA login. A wrong code leaves the step-up token
// usable for further attempts until it expires on its own.
func (s *service) VerifyStepUp(ctx context.Context, userID, code string) (*domain.TokenPair, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrInactiveAccount)
	}
	profile, err := s.accounts.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.Is2FAEnabled {
		return nil, fmt.Errorf("2FA is not enabled: %w", domain.ErrValidation)
	}
	if !totp.Verify(profile.TOTPSecret, code, s.now()) {
		s.logger.Warn("failed 2FA attempt", "user_id", userID)
		return nil, fmt.Errorf("invalid TOTP code: %w", domain.ErrAuthenticationFailed)
	}

	tokens, err := s.sessions.IssueInitial(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in with 2FA", "user_id", userID)
	return tokens, nil
}

// ForgotPassword provisions a reset secret and emails the reset link.
// Unknown and deactivated addresses report success anyway so the endpoint
// cannot be used to probe which emails are registered.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !user.IsActive {
		s.logger.Info("password reset requested for inactive account", "user_id", user.UserID)
		return nil
	}

	rawSecret, secretHash, err := secret.Generate()
	if err != nil {
		return fmt.Errorf("generate reset secret: %w", domain.ErrInternal)
	}

	unlock := s.locks.Lock(user.UserID)
	err = s.accounts.SetPendingSecret(ctx, user.UserID, domain.SecretPasswordReset, secretHash, s.now().Add(s.resetTTL).Unix())
	unlock()
	if err != nil {
		return err
	}
	s.logger.Info("password reset secret issued", "user_id", user.UserID)

	go s.sendPasswordResetEmail(user, rawSecret)
	return nil
}

// ResetPassword consumes a reset secret and installs the new password. The
// consume is conditional on the stored hash so the secret is single-use even
// under concurrent submissions of the same link.
func (s *service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	secretHash := secret.Hash(rawToken)
	profile, err := s.accounts.FindProfileBySecretHash(ctx, domain.SecretPasswordReset, secretHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("reset link is invalid: %w", domain.ErrInvalidOrExpiredToken)
		}
		return err
	}
	if !profile.SecretActive(domain.SecretPasswordReset, s.now()) {
		return fmt.Errorf("reset link has expired: %w", domain.ErrInvalidOrExpiredToken)
	}

	user, err := s.accounts.Get(ctx, profile.UserID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return fmt.Errorf("account is deactivated: %w", domain.ErrInactiveAccount)
	}
	if err := password.Validate(newPassword); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}
	newHash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", domain.ErrInternal)
	}

	if err := s.accounts.ConsumePasswordReset(ctx, user.UserID, secretHash, newHash); err != nil {
		return err
	}
	s.logger.Info("password reset completed", "user_id", user.UserID)
	return nil
}

// ChangePassword rotates the password of an authenticated user. Serialized
// per account so two concurrent changes cannot interleave the read of the
// old hash with the write of the new one.
func (s *service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !password.Check(oldPassword, user.PasswordHash) {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrAuthenticationFailed)
	}
	if newPassword == oldPassword {
		return fmt.Errorf("new password must differ from the current one: %w", domain.ErrValidation)
	}
	if err := password.Validate(newPassword); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}
	newHash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", domain.ErrInternal)
	}

	if err := s.accounts.Update(ctx, userID, map[string]interface{}{"password_hash": newHash}); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// VerifyEmail consumes a verification secret and flips the account to
// verified. An already-verified account rejects the attempt even when the
// secret would otherwise still be live.
func (s *service) VerifyEmail(ctx context.Context, rawToken string) error {
	secretHash := secret.Hash(rawToken)
	profile, err := s.accounts.FindProfileBySecretHash(ctx, domain.SecretEmailVerification, secretHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("verification link is invalid: %w", domain.ErrInvalidOrExpiredToken)
		}
		return err
	}
	if !profile.SecretActive(domain.SecretEmailVerification, s.now()) {
		return fmt.Errorf("verification link has expired: %w", domain.ErrInvalidOrExpiredToken)
	}

	user, err := s.accounts.Get(ctx, profile.UserID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return fmt.Errorf("account is deactivated: %w", domain.ErrInactiveAccount)
	}
	if user.IsVerified {
		return fmt.Errorf("email is already verified: %w", domain.ErrOperationNotAllowed)
	}

	if err := s.accounts.ConsumeEmailVerification(ctx, user.UserID, secretHash); err != nil {
		return err
	}
	s.logger.Info("email verified", "user_id", user.UserID)
	return nil
}

// ResendVerification rotates the pending verification secret and resends the
// email. Unknown addresses report success; a verified or deactivated account
// is told why instead, since the caller already proved they know the email
// belongs to an account by registering it.
func (s *service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("verification resend requested for unknown email")
			return nil
		}
		return err
	}
	if !user.IsActive {
		return fmt.Errorf("account is deactivated: %w", domain.ErrInactiveAccount)
	}
	if user.IsVerified {
		return fmt.Errorf("email is already verified: %w", domain.ErrOperationNotAllowed)
	}

	rawSecret, secretHash, err := secret.Generate()
	if err != nil {
		return fmt.Errorf("generate verification secret: %w", domain.ErrInternal)
	}

	unlock := s.locks.Lock(user.UserID)
	err = s.accounts.SetPendingSecret(ctx, user.UserID, domain.SecretEmailVerification, secretHash, s.now().Add(s.verifyTTL).Unix())
	unlock()
	if err != nil {
		return err
	}
	s.logger.Info("verification secret reissued", "user_id", user.UserID)

	go s.sendVerificationEmail(user, rawSecret)
	return nil
}

// ChangeRole assigns a new role tier to the target account. Self-demotion
// and self-promotion are both refused, and SUPERADMIN accounts are immutable
// through this flow.
func (s *service) ChangeRole(ctx context.Context, actorID, targetID, newRole string) (*domain.User, error) {
	if !domain.ValidRole(newRole) {
		return nil, fmt.Errorf("unknown role %q: %w", newRole, domain.ErrValidation)
	}
	if actorID == targetID {
		return nil, fmt.Errorf("cannot change own role: %w", domain.ErrPermissionDenied)
	}

	target, err := s.accounts.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrInactiveAccount)
	}
	if target.Role == domain.RoleSuperAdmin {
		return nil, fmt.Errorf("superadmin role cannot be changed: %w", domain.ErrOperationNotAllowed)
	}

	updates := map[string]interface{}{
		"role":     newRole,
		"is_staff": newRole != domain.RoleUser,
	}
	if err := s.accounts.Update(ctx, targetID, updates); err != nil {
		return nil, err
	}
	s.logger.Info("role changed", "user_id", targetID, "role", newRole, "actor", actorID)

	target.Role = newRole
	target.IsStaff = newRole != domain.RoleUser
	return target, nil
}

// CurrentUser resolves the account behind an access token's subject.
func (s *service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.accounts.Get(ctx, userID)
}

func (s *service) sendVerificationEmail(user *domain.User, rawSecret string) {
	err := s.notifier.Send(user.Email, smtp.TemplateVerifyEmail, map[string]string{
		"username":    user.Username,
		"verify_link": fmt.Sprintf("%s/verify-email/%s", s.frontend, rawSecret),
		"expiry":      s.verifyTTL.String(),
	})
	if err != nil {
		s.logger.Error("could not send verification email", "user_id", user.UserID, "err", err)
	}
}

func (s *service) sendPasswordResetEmail(user *domain.User, rawSecret string) {
	err := s.notifier.Send(user.Email, smtp.TemplatePasswordReset, map[string]string{
		"username":   user.Username,
		"reset_link": fmt.Sprintf("%s/reset-password/%s", s.frontend, rawSecret),
		"expiry":     s.resetTTL.String(),
	})
	if err != nil {
		s.logger.Error("could not send password reset email", "user_id", user.UserID, "err", err)
	}
}
