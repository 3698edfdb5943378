package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

type tokenVerifier interface {
	Verify(tokenStr, wantType string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates a Bearer access token and injects
// its claims into the request context. Refresh and step-up tokens are
// rejected here even though they are signed by the same key.
func Auth(verifier tokenVerifier) func(http.Handler) http.Handler {
	return requireToken(verifier, jwtinfra.TypeAccess)
}

// StepUp returns middleware that accepts only the short-lived 2FA step-up
// token issued after a password login on a 2FA-enabled account.
func StepUp(verifier tokenVerifier) func(http.Handler) http.Handler {
	return requireToken(verifier, jwtinfra.TypeStepUp)
}

func requireToken(verifier tokenVerifier, wantType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"error":"missing or invalid authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := verifier.Verify(tokenStr, wantType)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
