package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-identity-api/internal/domain"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
)

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) SignAccess(userID, role string) (string, error) {
	args := m.Called(userID, role)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) SignRefresh(userID, role string) (string, error) {
	args := m.Called(userID, role)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) SignStepUp(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) Verify(tokenStr, wantType string) (*jwtinfra.Claims, error) {
	args := m.Called(tokenStr, wantType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwtinfra.Claims), args.Error(1)
}

type mockBlacklist struct {
	mock.Mock
}

func (m *mockBlacklist) Add(ctx context.Context, rt *domain.RevokedToken) error {
	args := m.Called(ctx, rt)
	return args.Error(0)
}

func (m *mockBlacklist) Contains(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func refreshClaims(userID, role, jti string, exp time.Time) *jwtinfra.Claims {
	return &jwtinfra.Claims{
		Role:      role,
		TokenType: jwtinfra.TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func newTestService(signer *mockSigner, bl *mockBlacklist) Service {
	return NewService(ServiceDeps{
		Signer:    signer,
		Blacklist: bl,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
}

func TestIssueInitial(t *testing.T) {
	signer := new(mockSigner)
	signer.On("SignAccess", "u1", domain.RoleUser).Return("acc", nil)
	signer.On("SignRefresh", "u1", domain.RoleUser).Return("ref", nil)

	svc := newTestService(signer, new(mockBlacklist))
	pair, err := svc.IssueInitial(context.Background(), &domain.User{UserID: "u1", Role: domain.RoleUser})

	require.NoError(t, err)
	assert.Equal(t, "acc", pair.Access)
	assert.Equal(t, "ref", pair.Refresh)
}

func TestIssueInitialSignFailure(t *testing.T) {
	signer := new(mockSigner)
	signer.On("SignAccess", "u1", domain.RoleUser).Return("", errors.New("no key"))

	svc := newTestService(signer, new(mockBlacklist))
	_, err := svc.IssueInitial(context.Background(), &domain.User{UserID: "u1", Role: domain.RoleUser})

	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestRefresh(t *testing.T) {
	signer := new(mockSigner)
	bl := new(mockBlacklist)
	claims := refreshClaims("u1", domain.RoleAdmin, "jti-1", time.Now().Add(time.Hour))
	signer.On("Verify", "refresh-token", jwtinfra.TypeRefresh).Return(claims, nil)
	bl.On("Contains", mock.Anything, "jti-1").Return(false, nil)
	signer.On("SignAccess", "u1", domain.RoleAdmin).Return("new-access", nil)

	svc := newTestService(signer, bl)
	access, err := svc.Refresh(context.Background(), "refresh-token")

	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
}

func TestRefreshInvalidToken(t *testing.T) {
	signer := new(mockSigner)
	signer.On("Verify", "garbage", jwtinfra.TypeRefresh).Return(nil, errors.New("bad signature"))

	svc := newTestService(signer, new(mockBlacklist))
	_, err := svc.Refresh(context.Background(), "garbage")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}

func TestRefreshRevokedToken(t *testing.T) {
	signer := new(mockSigner)
	bl := new(mockBlacklist)
	claims := refreshClaims("u1", domain.RoleUser, "jti-revoked", time.Now().Add(time.Hour))
	signer.On("Verify", "refresh-token", jwtinfra.TypeRefresh).Return(claims, nil)
	bl.On("Contains", mock.Anything, "jti-revoked").Return(true, nil)

	svc := newTestService(signer, bl)
	_, err := svc.Refresh(context.Background(), "refresh-token")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
	signer.AssertNotCalled(t, "SignAccess", mock.Anything, mock.Anything)
}

func TestRevoke(t *testing.T) {
	signer := new(mockSigner)
	bl := new(mockBlacklist)
	exp := time.Unix(1700100000, 0)
	claims := refreshClaims("u1", domain.RoleUser, "jti-1", exp)
	signer.On("Verify", "refresh-token", jwtinfra.TypeRefresh).Return(claims, nil)
	bl.On("Add", mock.Anything, mock.MatchedBy(func(rt *domain.RevokedToken) bool {
		return rt.TokenID == "jti-1" && rt.UserID == "u1" && rt.ExpiresAt == exp.Unix()
	})).Return(nil)

	svc := newTestService(signer, bl)
	err := svc.Revoke(context.Background(), "u1", "refresh-token")

	require.NoError(t, err)
	bl.AssertExpectations(t)
}

func TestRevokeSubjectMismatch(t *testing.T) {
	signer := new(mockSigner)
	bl := new(mockBlacklist)
	claims := refreshClaims("someone-else", domain.RoleUser, "jti-1", time.Now().Add(time.Hour))
	signer.On("Verify", "refresh-token", jwtinfra.TypeRefresh).Return(claims, nil)

	svc := newTestService(signer, bl)
	err := svc.Revoke(context.Background(), "u1", "refresh-token")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
	bl.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestRevokeInvalidToken(t *testing.T) {
	signer := new(mockSigner)
	signer.On("Verify", "garbage", jwtinfra.TypeRefresh).Return(nil, errors.New("expired"))

	svc := newTestService(signer, new(mockBlacklist))
	err := svc.Revoke(context.Background(), "u1", "garbage")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}
