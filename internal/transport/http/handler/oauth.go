package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	oauthapp "github.com/go-identity-api/internal/application/oauth"
)

// OAuthHandler handles federated login redirects and callbacks.
type OAuthHandler struct {
	svc oauthapp.Service
}

func NewOAuthHandler(svc oauthapp.Service) *OAuthHandler {
	return &OAuthHandler{svc: svc}
}

// Authorize redirects the browser to the provider's consent screen.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	url, err := h.svc.AuthorizeURL(provider)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback exchanges the provider's authorization code for a local session.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	code := r.URL.Query().Get("code")
	result, err := h.svc.HandleCallback(r.Context(), provider, code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Tokens.Access,
		RefreshToken: result.Tokens.Refresh,
		User:         result.User,
	})
}
