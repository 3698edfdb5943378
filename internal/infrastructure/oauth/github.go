package oauthinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserURL = "https://api.github.com/user"

// GitHubClient implements the authorization-code flow against GitHub.
// GitHub has no ID token; the profile comes from the /user endpoint and the
// email field may be null for users who keep it private.
type GitHubClient struct {
	cfg     oauth2.Config
	userURL string
}

func NewGitHubClient(cfg *config.Config) *GitHubClient {
	return &GitHubClient{
		cfg: oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURI,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
}

func (c *GitHubClient) Name() string { return "github" }

func (c *GitHubClient) AuthorizeURL() string {
	return c.cfg.AuthCodeURL("")
}

func (c *GitHubClient) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github code exchange: %w", domain.ErrExternalService)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("github access token missing: %w", domain.ErrExternalService)
	}
	return tok, nil
}

func (c *GitHubClient) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("github profile request: %w", domain.ErrExternalService)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	res, err := c.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("github profile fetch: %w", domain.ErrExternalService)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github profile fetch: status %d: %w", res.StatusCode, domain.ErrExternalService)
	}

	var body struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("github profile decode: %w", domain.ErrExternalService)
	}

	name := body.Name
	if name == "" {
		name = body.Login
	}
	return &Profile{
		ProviderUserID: strconv.FormatInt(body.ID, 10),
		Email:          body.Email,
		DisplayName:    name,
	}, nil
}
