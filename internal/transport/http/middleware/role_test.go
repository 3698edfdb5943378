package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-identity-api/internal/domain"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
)

func requestWithRole(role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	claims := &jwtinfra.Claims{Role: role}
	return req.WithContext(context.WithValue(req.Context(), ClaimsKey, claims))
}

func TestRequireRole_Allowed(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestWithRole(domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole_AnyOfSeveral(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)(http.HandlerFunc(okHandler)).
		ServeHTTP(rr, requestWithRole(domain.RoleSuperAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestWithRole(domain.RoleUser))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRole_NoClaims(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	RequireRole(domain.RoleAdmin)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
