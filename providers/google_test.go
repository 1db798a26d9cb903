package providers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/onesearch/onesearch/providers"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGoogleAuthCodeURL(t *testing.T) {
	g := providers.NewGoogle("client-id", "client-secret", "https://app.example/api/auth/callback/google", providers.GoogleScopeDrive)
	require.True(t, g.UsesPKCE())

	verifier := oauth2.GenerateVerifier()
	raw := g.AuthCodeURL("drive.state-123", verifier)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := parsed.Query()
	require.Equal(t, "client-id", query.Get("client_id"))
	require.Equal(t, "drive.state-123", query.Get("state"))
	require.Equal(t, "offline", query.Get("access_type"))
	require.Equal(t, "consent", query.Get("prompt"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.NotEmpty(t, query.Get("code_challenge"))
	require.Contains(t, query.Get("scope"), "openid")
	require.Contains(t, query.Get("scope"), providers.GoogleScopeDrive)
}

func TestGoogleExchangeSendsVerifier(t *testing.T) {
	verifier := oauth2.GenerateVerifier()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "auth-code", r.Form.Get("code"))
		require.Equal(t, verifier, r.Form.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ya29.fresh",
			"token_type":    "bearer",
			"expires_in":    3599,
			"refresh_token": "1//refresh",
			"id_token":      "header.payload.signature",
		})
	}))
	defer srv.Close()

	endpoint := oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	g := providers.NewGoogle("client-id", "client-secret", "https://app.example/cb", providers.GoogleScopeGmail,
		providers.WithGoogleEndpoints(endpoint, srv.URL))

	tokens, err := g.Exchange(context.Background(), "auth-code", verifier)
	require.NoError(t, err)

	require.Equal(t, "ya29.fresh", tokens.AccessToken)
	require.NotNil(t, tokens.AccessTokenExpiresAt)
	require.Equal(t, "1//refresh", *tokens.RefreshToken)
	require.Equal(t, "header.payload.signature", tokens.IDToken)
}

func TestGoogleIdentifyRequiresIDToken(t *testing.T) {
	g := providers.NewGoogle("client-id", "client-secret", "https://app.example/cb", providers.GoogleScopeDrive)

	_, err := g.Identify(context.Background(), &providers.TokenSet{AccessToken: "ya29.fresh"})
	require.Error(t, err)
}
