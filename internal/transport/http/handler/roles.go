package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-identity-api/internal/application/auth"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// RoleHandler handles the admin role-assignment endpoint.
type RoleHandler struct {
	svc auth.Service
}

func NewRoleHandler(svc auth.Service) *RoleHandler {
	return &RoleHandler{svc: svc}
}

// List returns the role tiers a target account can be assigned.
func (h *RoleHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []string{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin})
}

func (h *RoleHandler) Change(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID := chi.URLParam(r, "id")
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		writeError(w, http.StatusBadRequest, "role required")
		return
	}
	updated, err := h.svc.ChangeRole(r.Context(), claims.Subject, targetID, req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
