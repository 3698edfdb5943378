package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-identity-api/internal/application/twofactor"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// TwoFactorHandler handles the TOTP enrollment lifecycle.
type TwoFactorHandler struct {
	svc twofactor.Service
}

func NewTwoFactorHandler(svc twofactor.Service) *TwoFactorHandler {
	return &TwoFactorHandler{svc: svc}
}

func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.svc.Setup(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, h.svc.Enable, "2FA enabled")
}

func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, h.svc.Disable, "2FA disabled")
}

// confirm is the shared body of Enable and Disable: both take a TOTP code
// and differ only in the service call.
func (h *TwoFactorHandler) confirm(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, code string) error, message string) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	if err := op(r.Context(), claims.Subject, req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: message})
}
