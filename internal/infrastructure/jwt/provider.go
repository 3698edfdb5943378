package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim. Every surface checks the type
// it expects: the auth middleware accepts only access tokens, the step-up
// endpoint accepts only 2fa tokens, and refresh accepts only refresh tokens.
// An otherwise-valid signature with the wrong type is always rejected.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeStepUp  = "2fa"
)

// Claims holds the JWT payload fields. RegisteredClaims.ID (jti) keys the
// revocation blacklist for refresh tokens.
type Claims struct {
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	stepUpTTL  time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey: privKey,
		publicKey:  pubKey,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		stepUpTTL:  cfg.StepUpTokenTTL,
		now:        time.Now,
	}, nil
}

// SignAccess issues a short-lived access token for the subject.
func (p *Provider) SignAccess(userID, role string) (string, error) {
	return p.sign(userID, role, TypeAccess, p.accessTTL)
}

// SignRefresh issues a long-lived refresh token. Its jti is what revocation
// appends to the blacklist.
func (p *Provider) SignRefresh(userID, role string) (string, error) {
	return p.sign(userID, role, TypeRefresh, p.refreshTTL)
}

// SignStepUp issues the narrow 2fa token handed out after the password
// check succeeds on a 2FA-enabled account.
func (p *Provider) SignStepUp(userID string) (string, error) {
	return p.sign(userID, "", TypeStepUp, p.stepUpTTL)
}

func (p *Provider) sign(userID, role, tokenType string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// Verify parses the token, checks the signature and expiry, and enforces
// the expected token type.
func (p *Provider) Verify(tokenStr, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}
	return claims, nil
}
