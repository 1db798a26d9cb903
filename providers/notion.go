package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

const (
	notionAuthURL  = "https://api.notion.com/v1/oauth/authorize"
	notionTokenURL = "https://api.notion.com/v1/oauth/token"
	notionUserURL  = "https://api.notion.com/v1/users/me"

	// notionVersion pins the Notion API revision for the users endpoint.
	notionVersion = "2022-06-28"
)

// Notion links a Notion workspace. Notion's token endpoint deviates from
// plain OAuth2: it requires a JSON body with HTTP Basic client auth, so the
// exchange is done by hand rather than through x/oauth2. Notion access
// tokens do not expire and no refresh token is issued.
type Notion struct {
	clientID     string
	clientSecret string
	redirectURL  string
	authURL      string
	tokenURL     string
	userURL      string
	httpClient   *http.Client
}

// NotionOption modifies a Notion client at construction time.
type NotionOption func(*Notion)

// WithNotionEndpoints overrides the Notion API endpoints (testing).
func WithNotionEndpoints(authURL, tokenURL, userURL string) NotionOption {
	return func(n *Notion) {
		n.authURL = authURL
		n.tokenURL = tokenURL
		n.userURL = userURL
	}
}

// NewNotion creates the Notion OAuth client.
func NewNotion(clientID, clientSecret, redirectURL string, options ...NotionOption) *Notion {
	n := &Notion{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		authURL:      notionAuthURL,
		tokenURL:     notionTokenURL,
		userURL:      notionUserURL,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// AuthCodeURL implements Client.AuthCodeURL.
func (n *Notion) AuthCodeURL(state, _ string) string {
	query := url.Values{
		"client_id":     {n.clientID},
		"redirect_uri":  {n.redirectURL},
		"response_type": {"code"},
		"owner":         {"user"},
		"state":         {state},
	}
	return n.authURL + "?" + query.Encode()
}

// Exchange implements Client.Exchange via Notion's JSON token endpoint.
func (n *Notion) Exchange(ctx context.Context, code, _ string) (*TokenSet, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": n.redirectURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Notion Exchange] encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[Notion Exchange] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(n.clientID, n.clientSecret)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Notion Exchange] token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Notion Exchange] token endpoint returned %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.Wrap(err, "[Notion Exchange] decode token response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("[Notion Exchange] token response missing access_token")
	}

	// Notion tokens are non-expiring: no expiry, no refresh token.
	return &TokenSet{AccessToken: tokenResp.AccessToken}, nil
}

// Refresh implements Client.Refresh. Notion never issues refresh tokens.
func (n *Notion) Refresh(context.Context, string) (*TokenSet, error) {
	return nil, errors.New("[Notion Refresh] notion does not issue refresh tokens")
}

// Identify implements Client.Identify via the bot-user endpoint. The token
// belongs to a bot whose owner is the linking user.
func (n *Notion) Identify(ctx context.Context, tokens *TokenSet) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.userURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Notion Identify] build request")
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Notion Identify] fetch bot user")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Notion Identify] users endpoint returned %d", resp.StatusCode)
	}

	var user struct {
		Name string `json:"name"`
		Bot  struct {
			Owner struct {
				User struct {
					Name string `json:"name"`
				} `json:"user"`
			} `json:"owner"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[Notion Identify] decode bot user")
	}

	username := user.Bot.Owner.User.Name
	if username == "" {
		username = user.Name
	}
	if username == "" {
		return nil, errors.New("[Notion Identify] bot user missing owner name")
	}

	return &Identity{Username: username}, nil
}

// UsesPKCE implements Client.UsesPKCE.
func (n *Notion) UsesPKCE() bool {
	return false
}

var _ Client = (*Notion)(nil)
