package providers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserURL = "https://api.github.com/user"

// GitHub links a user's GitHub account. Classic OAuth app tokens do not
// expire; GitHub App tokens do and come with refresh_token_expires_in, which
// fromOAuth2Token already honors.
type GitHub struct {
	conf       *oauth2.Config
	userURL    string
	httpClient *http.Client
}

// GitHubOption modifies a GitHub client at construction time.
type GitHubOption func(*GitHub)

// WithGitHubEndpoints overrides the token and user-info endpoints (testing).
func WithGitHubEndpoints(endpoint oauth2.Endpoint, userURL string) GitHubOption {
	return func(g *GitHub) {
		g.conf.Endpoint = endpoint
		g.userURL = userURL
	}
}

// NewGitHub creates the GitHub OAuth client. The repo scope covers code and
// issue search across the user's repositories.
func NewGitHub(clientID, clientSecret string, options ...GitHubOption) *GitHub {
	g := &GitHub{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"repo"},
		},
		userURL:    githubUserURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// AuthCodeURL implements Client.AuthCodeURL.
func (g *GitHub) AuthCodeURL(state, _ string) string {
	return g.conf.AuthCodeURL(state)
}

// Exchange implements Client.Exchange.
func (g *GitHub) Exchange(ctx context.Context, code, _ string) (*TokenSet, error) {
	tok, err := g.conf.Exchange(g.oauthContext(ctx), code)
	if err != nil {
		return nil, errors.Wrap(err, "[GitHub Exchange] authorization code exchange")
	}
	return fromOAuth2Token(tok), nil
}

// Refresh implements Client.Refresh.
func (g *GitHub) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	tok, err := g.conf.TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, errors.Wrap(err, "[GitHub Refresh] refresh token exchange")
	}
	return fromOAuth2Token(tok), nil
}

// Identify implements Client.Identify via the authenticated-user endpoint.
func (g *GitHub) Identify(ctx context.Context, tokens *TokenSet) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[GitHub Identify] build request")
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[GitHub Identify] fetch user")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[GitHub Identify] user endpoint returned %d", resp.StatusCode)
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[GitHub Identify] decode user")
	}
	if user.Login == "" {
		return nil, errors.New("[GitHub Identify] user response missing login")
	}

	return &Identity{Username: user.Login}, nil
}

// UsesPKCE implements Client.UsesPKCE. GitHub's authorization endpoint does
// not support PKCE for OAuth apps.
func (g *GitHub) UsesPKCE() bool {
	return false
}

func (g *GitHub) oauthContext(ctx context.Context) context.Context {
	if g.httpClient == http.DefaultClient {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

var _ Client = (*GitHub)(nil)
