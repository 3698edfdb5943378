package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-identity-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps login, step-up and callback responses. Exactly one of
// the two shapes is populated: a full token pair, or a step-up challenge.
type AuthEnvelope struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	Requires2FA  bool         `json:"requires_2fa,omitempty"`
	StepUpToken  string       `json:"step_up_token,omitempty"`
	User         *domain.User `json:"user,omitempty"`
	Message      string       `json:"message,omitempty"`
	Error        string       `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeDomainError maps a service error onto its HTTP status. Unknown errors
// collapse to a plain 500 so internals never leak to the caller.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAuthenticationFailed),
		errors.Is(err, domain.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrEmailNotVerified),
		errors.Is(err, domain.ErrInactiveAccount),
		errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOperationNotAllowed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrExternalService):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
