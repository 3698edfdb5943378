package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-identity-api/internal/application/auth"
	"github.com/go-identity-api/internal/domain"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, req *domain.LoginRequest) (*auth.LoginResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyStepUp(ctx context.Context, userID, code string) (*domain.TokenPair, error) {
	args := m.Called(ctx, userID, code)
	if p, _ := args.Get(0).(*domain.TokenPair); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	return m.Called(ctx, rawToken, newPassword).Error(0)
}

func (m *mockAuthSvc) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}

func (m *mockAuthSvc) VerifyEmail(ctx context.Context, rawToken string) error {
	return m.Called(ctx, rawToken).Error(0)
}

func (m *mockAuthSvc) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) ChangeRole(ctx context.Context, actorID, targetID, newRole string) (*domain.User, error) {
	args := m.Called(ctx, actorID, targetID, newRole)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
}

func withClaims(req *http.Request, userID string) *http.Request {
	claims := &jwtinfra.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
	return req.WithContext(context.WithValue(req.Context(), middleware.ClaimsKey, claims))
}

// --- tests ---

func TestRegisterHandler(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Register", mock.Anything, mock.MatchedBy(func(r *domain.RegisterRequest) bool {
		return r.Email == "a@b.com"
	})).Return(&domain.User{UserID: "u1", Email: "a@b.com"}, nil)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.Register(rr, postJSON(t, "/v1/auth/register", map[string]string{
		"email": "a@b.com", "username": "alice", "password": "hunter42x",
	}))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var env AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "u1", env.User.UserID)
}

func TestRegisterHandler_BadBody(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc))
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewReader([]byte("{"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginHandler_FullSession(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(&auth.LoginResult{
		Tokens: &domain.TokenPair{Access: "acc", Refresh: "ref"},
		User:   &domain.User{UserID: "u1"},
	}, nil)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/v1/auth/login", map[string]string{
		"email": "a@b.com", "password": "hunter42x",
	}))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "acc", env.AccessToken)
	assert.False(t, env.Requires2FA)
}

func TestLoginHandler_StepUpChallenge(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(&auth.LoginResult{
		RequiresStepUp: true,
		StepUpToken:    "step-up",
	}, nil)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/v1/auth/login", map[string]string{
		"email": "a@b.com", "password": "hunter42x",
	}))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Requires2FA)
	assert.Equal(t, "step-up", env.StepUpToken)
	assert.Empty(t, env.AccessToken)
}

func TestLoginHandler_BadCredentials(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.ErrAuthenticationFailed)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/v1/auth/login", map[string]string{
		"email": "a@b.com", "password": "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginHandler_InactiveAccount(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.ErrInactiveAccount)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/v1/auth/login", map[string]string{
		"email": "a@b.com", "password": "hunter42x",
	}))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestVerifyStepUpHandler(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyStepUp", mock.Anything, "u1", "123456").
		Return(&domain.TokenPair{Access: "acc", Refresh: "ref"}, nil)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	req := withClaims(postJSON(t, "/v1/auth/2fa/verify", map[string]string{"code": "123456"}), "u1")
	h.VerifyStepUp(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var env AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "acc", env.AccessToken)
}

func TestVerifyStepUpHandler_NoClaims(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc))
	rr := httptest.NewRecorder()
	h.VerifyStepUp(rr, postJSON(t, "/v1/auth/2fa/verify", map[string]string{"code": "123456"}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestForgotPasswordHandler_AlwaysOK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ForgotPassword", mock.Anything, "nobody@b.com").Return(nil)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.ForgotPassword(rr, postJSON(t, "/v1/auth/forgot-password", map[string]string{"email": "nobody@b.com"}))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestResetPasswordHandler_ExpiredToken(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ResetPassword", mock.Anything, "tok", "newpass99").Return(domain.ErrInvalidOrExpiredToken)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.ResetPassword(rr, postJSON(t, "/v1/auth/reset-password", map[string]string{
		"token": "tok", "new_password": "newpass99",
	}))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVerifyEmailHandler_AlreadyVerified(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyEmail", mock.Anything, "tok").Return(domain.ErrOperationNotAllowed)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	h.VerifyEmail(rr, postJSON(t, "/v1/auth/verify-email", map[string]string{"token": "tok"}))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestMeHandler(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("CurrentUser", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@b.com"}, nil)

	h := NewUserHandler(svc)
	rr := httptest.NewRecorder()
	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/users/me", nil), "u1")
	h.Me(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var user domain.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "a@b.com", user.Email)
}

func TestChangePasswordHandler(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ChangePassword", mock.Anything, "u1", "oldpass11", "newpass99").Return(nil)

	h := NewAuthHandler(svc)
	rr := httptest.NewRecorder()
	req := withClaims(postJSON(t, "/v1/auth/change-password", map[string]string{
		"old_password": "oldpass11", "new_password": "newpass99",
	}), "u1")
	h.ChangePassword(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
