package server

import (
	"encoding/json"
	"net/http"

	"github.com/onesearch/onesearch/sessions"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// providerFromSlug maps URL path segments onto providers.
func providerFromSlug(slug string) (sessions.Provider, bool) {
	switch slug {
	case "github":
		return sessions.ProviderGitHub, true
	case "notion":
		return sessions.ProviderNotion, true
	case "google-drive":
		return sessions.ProviderGoogleDrive, true
	case "gmail":
		return sessions.ProviderGmail, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// UnlinkHandler clears exactly one provider's fields on the current session.
// The response reports whether anything was unlinked; a missing or invalid
// session is false, never an error.
func (s *Server) UnlinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := providerFromSlug(r.PathValue("provider"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		c := s.cookies(w, r)
		manager, _ := s.newAuth(c)

		unlinked := false
		if token, has := c.SessionToken(); has {
			if session, err := manager.ValidateSessionToken(r.Context(), token); err == nil {
				if _, err := manager.UnlinkProvider(r.Context(), session.ID, p); err != nil {
					log.Err(err).Str("provider", string(p)).Msg("failed to unlink provider")
				} else {
					unlinked = true
					c.SetSessionToken(token, int(s.config.GetSessionMaxAge().Seconds()))
				}
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{"unlinked": unlinked})
	}
}

type integrationStatus struct {
	Linked   bool    `json:"linked"`
	Username *string `json:"username,omitempty"`
}

type sessionStatusResponse struct {
	Authenticated bool                         `json:"authenticated"`
	Integrations  map[string]integrationStatus `json:"integrations,omitempty"`
}

// SessionStatusHandler tells the search UI which integrations are linked and
// under what display name. Tokens are never included.
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.cookies(w, r)
		manager, _ := s.newAuth(c)

		token, has := c.SessionToken()
		if !has {
			writeJSON(w, http.StatusOK, sessionStatusResponse{})
			return
		}

		session, err := manager.ValidateSessionToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, sessionStatusResponse{})
			return
		}

		resp := sessionStatusResponse{
			Authenticated: true,
			Integrations:  make(map[string]integrationStatus, len(sessions.AllProviders)),
		}
		for _, p := range sessions.AllProviders {
			creds := session.Credentials(p)
			resp.Integrations[string(p)] = integrationStatus{
				Linked:   creds.Linked(),
				Username: creds.Username,
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// AccessTokenHandler hands the search layer a currently-valid access token
// for one provider, refreshing transparently when possible. A provider that
// is unlinked or cannot be refreshed yields a null token, not an error; the
// search layer renders it as "not connected".
func (s *Server) AccessTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := providerFromSlug(r.PathValue("provider"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		c := s.cookies(w, r)
		manager, resolver := s.newAuth(c)

		token, has := c.SessionToken()
		if !has {
			writeJSON(w, http.StatusOK, map[string]any{"accessToken": nil})
			return
		}

		session, err := manager.ValidateSessionToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"accessToken": nil})
			return
		}

		accessToken, usable := resolver.AccessToken(r.Context(), session, p)
		if !usable {
			writeJSON(w, http.StatusOK, map[string]any{"accessToken": nil})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"accessToken": accessToken})
	}
}

// HealthHandler reports process liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
