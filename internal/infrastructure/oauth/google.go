package oauthinfra

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// GoogleClient implements the authorization-code flow against Google.
// The profile comes from the ID token returned by the exchange, validated
// against our client id, so no separate userinfo call is needed.
type GoogleClient struct {
	cfg      oauth2.Config
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleClient(cfg *config.Config) *GoogleClient {
	return &GoogleClient{
		cfg: oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		validate: idtoken.Validate,
	}
}

func (c *GoogleClient) Name() string { return "google" }

func (c *GoogleClient) AuthorizeURL() string {
	return c.cfg.AuthCodeURL("",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", domain.ErrExternalService)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("google access token missing: %w", domain.ErrExternalService)
	}
	return tok, nil
}

func (c *GoogleClient) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		return nil, fmt.Errorf("google id token missing: %w", domain.ErrExternalService)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	payload, err := c.validate(ctx, rawID, c.cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google id token: %w", domain.ErrExternalService)
	}

	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	if name == "" && email != "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return &Profile{
		ProviderUserID: payload.Subject,
		Email:          email,
		DisplayName:    name,
	}, nil
}
