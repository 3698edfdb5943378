package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-identity-api/internal/domain"
	oauthinfra "github.com/go-identity-api/internal/infrastructure/oauth"
	"github.com/go-identity-api/internal/pkg/id"
)

// Service links federated identities to local accounts. A successful
// callback always ends in a full session: accounts reached through a
// verified provider are treated as email-verified and skip the TOTP
// step-up.
type Service interface {
	AuthorizeURL(provider string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*CallbackResult, error)
}

type CallbackResult struct {
	Tokens *domain.TokenPair `json:"tokens"`
	User   *domain.User      `json:"user"`
}

type accountStore interface {
	CreateFederated(ctx context.Context, u *domain.User, p *domain.SecurityProfile, pr *domain.Presence) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}, removes ...string) error
	EnsureProfile(ctx context.Context, p *domain.SecurityProfile) error
	EnsurePresence(ctx context.Context, pr *domain.Presence) error
}

type sessionIssuer interface {
	IssueInitial(ctx context.Context, u *domain.User) (*domain.TokenPair, error)
}

type service struct {
	providers map[string]oauthinfra.Client
	accounts  accountStore
	sessions  sessionIssuer
	logger    *slog.Logger
	now       func() time.Time
}

type ServiceDeps struct {
	Providers []oauthinfra.Client
	Accounts  accountStore
	Sessions  sessionIssuer
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	providers := make(map[string]oauthinfra.Client, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p.Name()] = p
	}
	return &service{
		providers: providers,
		accounts:  deps.Accounts,
		sessions:  deps.Sessions,
		logger:    deps.Logger.With("component", "oauth"),
		now:       deps.Now,
	}
}

func (s *service) AuthorizeURL(provider string) (string, error) {
	client, err := s.client(provider)
	if err != nil {
		return "", err
	}
	return client.AuthorizeURL(), nil
}

// HandleCallback exchanges the authorization code, resolves the provider
// profile and upserts the local account keyed by normalized email. Providers
// that withhold the email get a synthesized one from the stable provider
// user id, so repeat logins land on the same account.
func (s *service) HandleCallback(ctx context.Context, provider, code string) (*CallbackResult, error) {
	client, err := s.client(provider)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("missing authorization code: %w", domain.ErrValidation)
	}

	token, err := client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	profile, err := client.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	email, err := s.resolveEmail(client.Name(), profile)
	if err != nil {
		return nil, err
	}

	user, err := s.upsert(ctx, client.Name(), email, profile)
	if err != nil {
		return nil, err
	}

	tokens, err := s.sessions.IssueInitial(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("federated login", "user_id", user.UserID, "provider", client.Name())
	return &CallbackResult{Tokens: tokens, User: user}, nil
}

func (s *service) client(provider string) (oauthinfra.Client, error) {
	client, ok := s.providers[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q: %w", provider, domain.ErrValidation)
	}
	return client, nil
}

func (s *service) resolveEmail(provider string, profile *oauthinfra.Profile) (string, error) {
	if profile.Email != "" {
		return domain.NormalizeEmail(profile.Email), nil
	}
	if profile.ProviderUserID == "" {
		return "", fmt.Errorf("provider returned neither email nor user id: %w", domain.ErrValidation)
	}
	return fmt.Sprintf("%s@%s.local", profile.ProviderUserID, provider), nil
}

func (s *service) upsert(ctx context.Context, provider, email string, profile *oauthinfra.Profile) (*domain.User, error) {
	loginType := loginTypeFor(provider)
	username := profile.DisplayName
	if username == "" {
		username = profile.ProviderUserID
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		updates := map[string]interface{}{
			"username":    username,
			"is_verified": true,
		}
		if err := s.accounts.Update(ctx, existing.UserID, updates); err != nil {
			return nil, err
		}
		// Accounts imported from before profiles existed may lack one.
		if err := s.accounts.EnsureProfile(ctx, &domain.SecurityProfile{
			UserID:    existing.UserID,
			LoginType: loginType,
			CreatedAt: s.now().UTC(),
			UpdatedAt: s.now().UTC(),
		}); err != nil {
			return nil, err
		}
		if err := s.accounts.EnsurePresence(ctx, domain.NewPresence(existing.UserID, s.now().UTC())); err != nil {
			return nil, err
		}
		if err := s.accounts.UpdateProfile(ctx, existing.UserID, map[string]interface{}{
			"login_type": loginType,
		}); err != nil {
			return nil, err
		}
		existing.Username = username
		existing.IsVerified = true
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		UserID:     id.New(),
		Email:      email,
		Username:   username,
		Role:       domain.RoleUser,
		IsVerified: true,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	federatedProfile := &domain.SecurityProfile{
		UserID:    user.UserID,
		LoginType: loginType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.CreateFederated(ctx, user, federatedProfile, domain.NewPresence(user.UserID, now)); err != nil {
		return nil, err
	}
	s.logger.Info("federated account provisioned", "user_id", user.UserID, "provider", provider)
	return user, nil
}

func loginTypeFor(provider string) string {
	switch provider {
	case "github":
		return domain.LoginGitHub
	default:
		return domain.LoginGoogle
	}
}
