// Package oauthinfra holds the outbound clients for federated identity
// providers. Every network call carries a 10 second timeout so the login
// path can never hang on a slow provider; failures surface as
// domain.ErrExternalService.
package oauthinfra

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

const requestTimeout = 10 * time.Second

// Profile is the identity a provider resolved for the authorizing user.
// Email may be empty when the provider withholds it; ProviderUserID is
// always set and serves as the fallback identity.
type Profile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
}

// Client exchanges authorization codes and fetches profiles for a single
// provider.
type Client interface {
	// Name is the lower-case provider key used in routes and synthesized
	// email domains ("google", "github").
	Name() string
	// AuthorizeURL is a pure function of configuration; it performs no
	// network call.
	AuthorizeURL() string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}
