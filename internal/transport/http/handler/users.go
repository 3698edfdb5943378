package handler

import (
	"net/http"

	"github.com/go-identity-api/internal/application/auth"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// UserHandler handles account self-service reads.
type UserHandler struct {
	svc auth.Service
}

func NewUserHandler(svc auth.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me returns the account behind the presented access token.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.svc.CurrentUser(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
