package providers

import (
	"context"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

// GoogleScopeDrive and GoogleScopeGmail are the integration-specific scopes
// appended to the base OIDC scopes. Drive and Gmail are distinct logical
// integrations sharing one Google OAuth client; each gets its own Google
// instance differing only in scope.
const (
	GoogleScopeDrive = "https://www.googleapis.com/auth/drive.readonly"
	GoogleScopeGmail = "https://www.googleapis.com/auth/gmail.readonly"
)

// Google links a Google account for one logical integration. Uses PKCE, and
// requests offline access with forced consent so a refresh token is issued
// on every link.
type Google struct {
	conf       *oauth2.Config
	issuer     string
	httpClient *http.Client

	verifierMu sync.Mutex
	verifier   *oidc.IDTokenVerifier
}

// GoogleOption modifies a Google client at construction time.
type GoogleOption func(*Google)

// WithGoogleEndpoints overrides the OAuth endpoint and OIDC issuer (testing).
func WithGoogleEndpoints(endpoint oauth2.Endpoint, issuer string) GoogleOption {
	return func(g *Google) {
		g.conf.Endpoint = endpoint
		g.issuer = issuer
	}
}

// WithGoogleIDTokenVerifier injects a pre-built ID token verifier, skipping
// issuer discovery (testing).
func WithGoogleIDTokenVerifier(verifier *oidc.IDTokenVerifier) GoogleOption {
	return func(g *Google) {
		g.verifier = verifier
	}
}

// NewGoogle creates a Google OAuth client for one logical integration.
// integrationScope is GoogleScopeDrive or GoogleScopeGmail.
func NewGoogle(clientID, clientSecret, redirectURL, integrationScope string, options ...GoogleOption) *Google {
	g := &Google{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", integrationScope},
		},
		issuer:     googleIssuer,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// AuthCodeURL implements Client.AuthCodeURL with offline access, forced
// consent, and an S256 PKCE challenge.
func (g *Google) AuthCodeURL(state, verifier string) string {
	return g.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange implements Client.Exchange.
func (g *Google) Exchange(ctx context.Context, code, verifier string) (*TokenSet, error) {
	tok, err := g.conf.Exchange(g.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "[Google Exchange] authorization code exchange")
	}
	return fromOAuth2Token(tok), nil
}

// Refresh implements Client.Refresh.
func (g *Google) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	tok, err := g.conf.TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, errors.Wrap(err, "[Google Refresh] refresh token exchange")
	}
	return fromOAuth2Token(tok), nil
}

// Identify implements Client.Identify by verifying the ID token returned by
// the code exchange and reading its profile claims. No extra network call to
// a userinfo endpoint is needed.
func (g *Google) Identify(ctx context.Context, tokens *TokenSet) (*Identity, error) {
	if tokens.IDToken == "" {
		return nil, errors.New("[Google Identify] token response missing id_token")
	}

	verifier, err := g.idTokenVerifier(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Google Identify] build ID token verifier")
	}

	idToken, err := verifier.Verify(ctx, tokens.IDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Google Identify] verify ID token")
	}

	var claims struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[Google Identify] extract claims")
	}

	username := claims.Name
	if username == "" {
		username = claims.Email
	}
	if username == "" {
		return nil, errors.New("[Google Identify] ID token missing name and email")
	}

	return &Identity{Username: username}, nil
}

// UsesPKCE implements Client.UsesPKCE.
func (g *Google) UsesPKCE() bool {
	return true
}

// idTokenVerifier lazily runs OIDC discovery against the issuer and caches
// the resulting verifier for the process lifetime.
func (g *Google) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	g.verifierMu.Lock()
	defer g.verifierMu.Unlock()

	if g.verifier != nil {
		return g.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, g.issuer)
	if err != nil {
		return nil, err
	}
	g.verifier = provider.Verifier(&oidc.Config{ClientID: g.conf.ClientID})
	return g.verifier, nil
}

func (g *Google) oauthContext(ctx context.Context) context.Context {
	if g.httpClient == http.DefaultClient {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

var _ Client = (*Google)(nil)
