package middleware

import (
	"net/http"
)

// RequireRole gates a route group by role tier. The role comes from the
// access token claims that Auth put on the context, so RequireRole must sit
// inside an Auth-wrapped group; admin routes pass domain.RoleAdmin and
// domain.RoleSuperAdmin.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			for _, role := range allowedRoles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		})
	}
}
