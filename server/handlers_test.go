package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/onesearch/onesearch/auth"
	"github.com/onesearch/onesearch/internal/config"
	"github.com/onesearch/onesearch/internal/utils"
	"github.com/onesearch/onesearch/providers"
	"github.com/onesearch/onesearch/server"
	"github.com/onesearch/onesearch/sessions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeClient is a scripted providers.Client.
type fakeClient struct {
	pkce        bool
	tokens      *providers.TokenSet
	exchangeErr error
	identity    *providers.Identity
	identifyErr error

	exchanges    int
	lastCode     string
	lastVerifier string
}

func (f *fakeClient) AuthCodeURL(state, _ string) string {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeClient) Exchange(_ context.Context, code, verifier string) (*providers.TokenSet, error) {
	f.exchanges++
	f.lastCode = code
	f.lastVerifier = verifier
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.tokens, nil
}

func (f *fakeClient) Refresh(context.Context, string) (*providers.TokenSet, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeClient) Identify(context.Context, *providers.TokenSet) (*providers.Identity, error) {
	if f.identifyErr != nil {
		return nil, f.identifyErr
	}
	return f.identity, nil
}

func (f *fakeClient) UsesPKCE() bool {
	return f.pkce
}

var _ providers.Client = (*fakeClient)(nil)

type serverFixture struct {
	store   *sessions.MemoryStore
	manager *auth.Manager
	srv     *server.Server
	clients map[sessions.Provider]*fakeClient
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		store: sessions.NewMemoryStore(time.Hour),
		clients: map[sessions.Provider]*fakeClient{
			sessions.ProviderGitHub:      {},
			sessions.ProviderNotion:      {},
			sessions.ProviderGoogleDrive: {pkce: true},
			sessions.ProviderGmail:       {pkce: true},
		},
	}
	t.Cleanup(f.store.Stop)

	manager, err := auth.NewManager(f.store)
	require.NoError(t, err)
	f.manager = manager

	clients := map[sessions.Provider]providers.Client{}
	refreshers := map[sessions.Provider]auth.Refresher{}
	for p, client := range f.clients {
		clients[p] = client
		refreshers[p] = client
	}
	resolver, err := auth.NewResolver(manager, refreshers)
	require.NoError(t, err)

	newAuth := func(sessions.CookieCarrier) (*auth.Manager, *auth.Resolver) {
		return manager, resolver
	}
	srv, err := server.New(config.New(), clients, newAuth)
	require.NoError(t, err)
	f.srv = srv
	return f
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

// linkedSessionToken seeds a session with one linked provider and returns its
// cookie token.
func (f *serverFixture) linkedSessionToken(t *testing.T, p sessions.Provider, username, accessToken string) string {
	t.Helper()
	_, token, err := f.manager.CreateSession(context.Background(), auth.WithInitialLink(p, sessions.CredentialPatch{
		Username:    utils.Ptr(username),
		AccessToken: utils.Ptr(accessToken),
	}))
	require.NoError(t, err)
	return token
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range (&http.Response{Header: rec.Header()}).Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

type statusBody struct {
	Authenticated bool `json:"authenticated"`
	Integrations  map[string]struct {
		Linked   bool    `json:"linked"`
		Username *string `json:"username"`
	} `json:"integrations"`
}

func TestServerNewValidation(t *testing.T) {
	f := newServerFixture(t)
	clients := map[sessions.Provider]providers.Client{}
	for p, client := range f.clients {
		clients[p] = client
	}
	newAuth := func(sessions.CookieCarrier) (*auth.Manager, *auth.Resolver) { return nil, nil }

	_, err := server.New(nil, clients, newAuth)
	require.Error(t, err)

	_, err = server.New(config.New(), clients, nil)
	require.Error(t, err)

	delete(clients, sessions.ProviderGmail)
	_, err = server.New(config.New(), clients, newAuth)
	require.Error(t, err)
}

func TestLoginGitHub(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLoginGitHub, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "provider.example", location.Host)

	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	stateCookie := responseCookie(rec, "github_oauth_state")
	require.NotNil(t, stateCookie)
	require.Equal(t, state, stateCookie.Value)
	require.True(t, stateCookie.HttpOnly)

	// GitHub does not use PKCE; no verifier cookie.
	require.Nil(t, responseCookie(rec, "google_code_verifier"))
}

func TestLoginGmailUsesTaggedStateAndPKCE(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLoginGmail, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	stateCookie := responseCookie(rec, "google_oauth_state")
	require.NotNil(t, stateCookie)
	require.True(t, strings.HasPrefix(stateCookie.Value, "gmail."))

	verifierCookie := responseCookie(rec, "google_code_verifier")
	require.NotNil(t, verifierCookie)
	require.NotEmpty(t, verifierCookie.Value)
}

func TestGitHubCallbackCreatesSession(t *testing.T) {
	f := newServerFixture(t)
	f.clients[sessions.ProviderGitHub].tokens = &providers.TokenSet{AccessToken: "gho_tok"}
	f.clients[sessions.ProviderGitHub].identity = &providers.Identity{Username: "alice"}

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGitHub+"?code=auth-code&state=state123", nil)
	req.AddCookie(&http.Cookie{Name: "github_oauth_state", Value: "state123"})
	rec := f.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	require.Equal(t, "auth-code", f.clients[sessions.ProviderGitHub].lastCode)

	// The one-shot flow cookie is consumed.
	stateCookie := responseCookie(rec, "github_oauth_state")
	require.NotNil(t, stateCookie)
	require.Equal(t, -1, stateCookie.MaxAge)

	sessionCookie := responseCookie(rec, "session")
	require.NotNil(t, sessionCookie)
	require.NotEmpty(t, sessionCookie.Value)

	statusReq := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	statusReq.AddCookie(&http.Cookie{Name: "session", Value: sessionCookie.Value})
	statusRec := f.do(statusReq)

	require.Equal(t, http.StatusOK, statusRec.Code)
	body := decodeBody[statusBody](t, statusRec)
	require.True(t, body.Authenticated)
	require.True(t, body.Integrations["github"].Linked)
	require.Equal(t, "alice", *body.Integrations["github"].Username)
	require.False(t, body.Integrations["notion"].Linked)
}

func TestCallbackStateMismatch(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGitHub+"?code=auth-code&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: "github_oauth_state", Value: "state123"})
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.clients[sessions.ProviderGitHub].exchanges)
	require.Nil(t, responseCookie(rec, "session"))
}

func TestCallbackMissingParams(t *testing.T) {
	f := newServerFixture(t)

	// No code.
	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackNotion+"?state=state123", nil)
	req.AddCookie(&http.Cookie{Name: "notion_oauth_state", Value: "state123"})
	require.Equal(t, http.StatusBadRequest, f.do(req).Code)

	// No flow cookie.
	req = httptest.NewRequest(http.MethodGet, server.RouteCallbackNotion+"?code=auth-code&state=state123", nil)
	require.Equal(t, http.StatusBadRequest, f.do(req).Code)

	require.Zero(t, f.clients[sessions.ProviderNotion].exchanges)
}

func TestCallbackExchangeFailure(t *testing.T) {
	f := newServerFixture(t)
	f.clients[sessions.ProviderGitHub].exchangeErr = errors.New("bad code")

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGitHub+"?code=auth-code&state=state123", nil)
	req.AddCookie(&http.Cookie{Name: "github_oauth_state", Value: "state123"})
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, responseCookie(rec, "session"))
}

func TestGoogleCallbackLinksTaggedIntegration(t *testing.T) {
	f := newServerFixture(t)
	f.clients[sessions.ProviderGoogleDrive].tokens = &providers.TokenSet{AccessToken: "ya29.tok"}
	f.clients[sessions.ProviderGoogleDrive].identity = &providers.Identity{Username: "Alice"}

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGoogle+"?code=auth-code&state=drive.state123", nil)
	req.AddCookie(&http.Cookie{Name: "google_oauth_state", Value: "drive.state123"})
	req.AddCookie(&http.Cookie{Name: "google_code_verifier", Value: "verifier-abc"})
	rec := f.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "verifier-abc", f.clients[sessions.ProviderGoogleDrive].lastVerifier)
	require.Zero(t, f.clients[sessions.ProviderGmail].exchanges)

	sessionCookie := responseCookie(rec, "session")
	require.NotNil(t, sessionCookie)

	statusReq := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	statusReq.AddCookie(&http.Cookie{Name: "session", Value: sessionCookie.Value})
	body := decodeBody[statusBody](t, f.do(statusReq))
	require.True(t, body.Integrations["google_drive"].Linked)
	require.False(t, body.Integrations["gmail"].Linked)
}

func TestGoogleCallbackMissingVerifier(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGoogle+"?code=auth-code&state=drive.state123", nil)
	req.AddCookie(&http.Cookie{Name: "google_oauth_state", Value: "drive.state123"})
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.clients[sessions.ProviderGoogleDrive].exchanges)
}

func TestGoogleCallbackUnknownTarget(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGoogle+"?code=auth-code&state=calendar.state123", nil)
	req.AddCookie(&http.Cookie{Name: "google_oauth_state", Value: "calendar.state123"})
	req.AddCookie(&http.Cookie{Name: "google_code_verifier", Value: "verifier-abc"})
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.clients[sessions.ProviderGoogleDrive].exchanges)
	require.Zero(t, f.clients[sessions.ProviderGmail].exchanges)
}

func TestCallbackLinksOntoExistingSession(t *testing.T) {
	f := newServerFixture(t)
	existingToken := f.linkedSessionToken(t, sessions.ProviderNotion, "alice-notion", "ntn_tok")

	f.clients[sessions.ProviderGitHub].tokens = &providers.TokenSet{AccessToken: "gho_tok"}
	f.clients[sessions.ProviderGitHub].identity = &providers.Identity{Username: "alice"}

	req := httptest.NewRequest(http.MethodGet, server.RouteCallbackGitHub+"?code=auth-code&state=state123", nil)
	req.AddCookie(&http.Cookie{Name: "github_oauth_state", Value: "state123"})
	req.AddCookie(&http.Cookie{Name: "session", Value: existingToken})
	rec := f.do(req)

	require.Equal(t, http.StatusFound, rec.Code)

	// Same session, now with both integrations.
	sessionCookie := responseCookie(rec, "session")
	require.NotNil(t, sessionCookie)
	require.Equal(t, existingToken, sessionCookie.Value)

	statusReq := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	statusReq.AddCookie(&http.Cookie{Name: "session", Value: existingToken})
	body := decodeBody[statusBody](t, f.do(statusReq))
	require.True(t, body.Integrations["github"].Linked)
	require.True(t, body.Integrations["notion"].Linked)
}

func TestUnlink(t *testing.T) {
	f := newServerFixture(t)
	token := f.linkedSessionToken(t, sessions.ProviderGitHub, "alice", "gho_tok")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/unlink/github", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]bool](t, rec)
	require.True(t, body["unlinked"])

	statusReq := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	statusReq.AddCookie(&http.Cookie{Name: "session", Value: token})
	status := decodeBody[statusBody](t, f.do(statusReq))
	require.True(t, status.Authenticated)
	require.False(t, status.Integrations["github"].Linked)
}

func TestUnlinkWithoutSession(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/auth/unlink/github", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]bool](t, rec)
	require.False(t, body["unlinked"])
}

func TestUnlinkUnknownProvider(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/auth/unlink/dropbox", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionStatusWithoutSession(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteSession, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[statusBody](t, rec)
	require.False(t, body.Authenticated)
	require.Empty(t, body.Integrations)
}

func TestSessionStatusNeverLeaksTokens(t *testing.T) {
	f := newServerFixture(t)
	token := f.linkedSessionToken(t, sessions.ProviderGitHub, "alice", "gho_supersecret")

	req := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "gho_supersecret")
}

func TestAccessTokenEndpoint(t *testing.T) {
	f := newServerFixture(t)
	token := f.linkedSessionToken(t, sessions.ProviderNotion, "alice-notion", "ntn_tok")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/token/notion", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]*string](t, rec)
	require.NotNil(t, body["accessToken"])
	require.Equal(t, "ntn_tok", *body["accessToken"])

	// Unlinked provider: null token, still 200.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/token/gmail", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeBody[map[string]*string](t, rec)["accessToken"])

	// No session at all: null token.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/auth/token/notion", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeBody[map[string]*string](t, rec)["accessToken"])

	// Unknown provider slug.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/auth/token/dropbox", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestCorsMiddleware(t *testing.T) {
	f := newServerFixture(t)

	// Allowed origin gets credentialed CORS headers.
	req := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := f.do(req)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	// Unknown origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = f.do(req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Security headers ride along on every response.
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
