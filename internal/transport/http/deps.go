package http

import (
	"github.com/go-identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	oauthinfra "github.com/go-identity-api/internal/infrastructure/oauth"
	"github.com/go-identity-api/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router. The application
// services are wired inside NewRouter; callers only provide the outer edges.
type Deps struct {
	AccountRepo   *dynamo.AccountRepo
	BlacklistRepo *dynamo.BlacklistRepo
	JWTProvider   *jwtinfra.Provider
	Mailer        smtp.Notifier
	OAuthClients  []oauthinfra.Client
}
