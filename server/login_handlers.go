package server

import (
	"net/http"

	"github.com/onesearch/onesearch/auth"
	"github.com/onesearch/onesearch/sessions"
	"golang.org/x/oauth2"
)

// integrationTag names the logical Google integration a flow links. The tag
// is embedded in the state value itself ("drive.<random>") rather than a
// separate cookie, so two concurrently initiated Google flows cannot
// cross-link each other's target.
func integrationTag(p sessions.Provider) string {
	switch p {
	case sessions.ProviderGoogleDrive:
		return "drive"
	case sessions.ProviderGmail:
		return "gmail"
	}
	return ""
}

// LoginHandler initiates the OAuth flow for one integration: fresh state
// (and PKCE verifier where the provider uses one), short-lived flow cookies,
// redirect to the provider's consent page.
func (s *Server) LoginHandler(p sessions.Provider) http.HandlerFunc {
	client := s.clients[p]
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.cookies(w, r)
		flowMaxAge := int(s.config.GetFlowCookieMaxAge().Seconds())

		state := auth.GenerateSecureRandomString()
		if tag := integrationTag(p); tag != "" {
			state = tag + "." + state
		}

		verifier := ""
		if client.UsesPKCE() {
			verifier = oauth2.GenerateVerifier()
			c.Set(googleVerifierCookieName, verifier, flowMaxAge)
		}

		c.Set(stateCookieName(p), state, flowMaxAge)
		http.Redirect(w, r, client.AuthCodeURL(state, verifier), http.StatusFound)
	}
}
