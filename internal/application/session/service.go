package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
)

// Service issues, refreshes and revokes bearer tokens. Access and step-up
// tokens are stateless JWTs; refresh tokens additionally answer to an
// append-only revocation blacklist keyed by jti.
type Service interface {
	IssueInitial(ctx context.Context, u *domain.User) (*domain.TokenPair, error)
	IssueStepUp(ctx context.Context, u *domain.User) (string, error)
	Refresh(ctx context.Context, refreshToken string) (access string, err error)
	Revoke(ctx context.Context, userID, refreshToken string) error
}

type tokenSigner interface {
	SignAccess(userID, role string) (string, error)
	SignRefresh(userID, role string) (string, error)
	SignStepUp(userID string) (string, error)
	Verify(tokenStr, wantType string) (*jwtinfra.Claims, error)
}

type blacklistStore interface {
	Add(ctx context.Context, rt *domain.RevokedToken) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

type service struct {
	signer    tokenSigner
	blacklist blacklistStore
	logger    *slog.Logger
	now       func() time.Time
}

type ServiceDeps struct {
	Signer    tokenSigner
	Blacklist blacklistStore
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
	return &service{
		signer:    deps.Signer,
		blacklist: deps.Blacklist,
		logger:    deps.Logger.With("component", "session"),
		now:       deps.Now,
	}
}

func (s *service) IssueInitial(ctx context.Context, u *domain.User) (*domain.TokenPair, error) {
	access, err := s.signer.SignAccess(u.UserID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", domain.ErrInternal)
	}
	refresh, err := s.signer.SignRefresh(u.UserID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", domain.ErrInternal)
	}
	return &domain.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *service) IssueStepUp(ctx context.Context, u *domain.User) (string, error) {
	tok, err := s.signer.SignStepUp(u.UserID)
	if err != nil {
		return "", fmt.Errorf("sign step-up token: %w", domain.ErrInternal)
	}
	return tok, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.signer.Verify(refreshToken, jwtinfra.TypeRefresh)
	if err != nil {
		return "", fmt.Errorf("refresh token rejected: %w", domain.ErrInvalidOrExpiredToken)
	}
	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return "", fmt.Errorf("refresh token revoked: %w", domain.ErrInvalidOrExpiredToken)
	}
	access, err := s.signer.SignAccess(claims.Subject, claims.Role)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", domain.ErrInternal)
	}
	s.logger.Info("access token refreshed", "user_id", claims.Subject)
	return access, nil
}

// Revoke appends the refresh token's jti to the blacklist. The token must
// belong to the calling user; a subject mismatch is rejected without any
// write so one user cannot kill another's session.
func (s *service) Revoke(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.signer.Verify(refreshToken, jwtinfra.TypeRefresh)
	if err != nil {
		return fmt.Errorf("refresh token rejected: %w", domain.ErrInvalidOrExpiredToken)
	}
	if claims.Subject != userID {
		s.logger.Warn("token subject mismatch during logout", "user_id", userID)
		return fmt.Errorf("token does not belong to the user: %w", domain.ErrInvalidOrExpiredToken)
	}

	var expiresAt int64
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}
	if err := s.blacklist.Add(ctx, &domain.RevokedToken{
		TokenID:   claims.ID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	s.logger.Info("user logged out", "user_id", userID)
	return nil
}
