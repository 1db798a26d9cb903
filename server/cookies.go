package server

import (
	"net/http"

	"github.com/onesearch/onesearch/sessions"
)

const (
	// sessionCookieName carries the "<id>.<secret>" session token.
	sessionCookieName = "session"

	// Flow cookies: short-lived OAuth state, consumed exactly once at
	// callback time.
	githubStateCookieName    = "github_oauth_state"
	googleStateCookieName    = "google_oauth_state"
	notionStateCookieName    = "notion_oauth_state"
	googleVerifierCookieName = "google_code_verifier"
)

// Cookies is the explicit per-request cookie context. Every operation that
// reads or writes cookies takes it as an argument, so cookie side effects
// show up in signatures instead of happening ambiently.
type Cookies struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
}

var _ sessions.CookieCarrier = (*Cookies)(nil)

func (s *Server) cookies(w http.ResponseWriter, r *http.Request) *Cookies {
	return &Cookies{
		w:      w,
		r:      r,
		secure: s.env != "DEV",
	}
}

// Get returns the named cookie's value, reporting false when absent or empty.
func (c *Cookies) Get(name string) (string, bool) {
	cookie, err := c.r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set writes an httpOnly, SameSite=Lax cookie scoped to the whole site,
// Secure outside development.
func (c *Cookies) Set(name, value string, maxAge int) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// Clear expires the named cookie immediately.
func (c *Cookies) Clear(name string) {
	c.Set(name, "", -1)
}

// SessionToken reads the session cookie.
func (c *Cookies) SessionToken() (string, bool) {
	return c.Get(sessionCookieName)
}

// SetSessionToken sets or refreshes the session cookie.
func (c *Cookies) SetSessionToken(token string, maxAge int) {
	c.Set(sessionCookieName, token, maxAge)
}

// stateCookieName returns the flow-state cookie for a provider. Drive and
// Gmail share the single Google flow cookie.
func stateCookieName(p sessions.Provider) string {
	switch p {
	case sessions.ProviderGitHub:
		return githubStateCookieName
	case sessions.ProviderNotion:
		return notionStateCookieName
	case sessions.ProviderGoogleDrive, sessions.ProviderGmail:
		return googleStateCookieName
	}
	return ""
}
