package server

import (
	"net/http"
	"strings"

	"github.com/onesearch/onesearch/auth"
	"github.com/onesearch/onesearch/internal/utils"
	"github.com/onesearch/onesearch/providers"
	"github.com/onesearch/onesearch/sessions"
	"github.com/rs/zerolog/log"
)

// Callback validation failures respond 400 with an empty body and perform no
// session mutation; only store write failures after a validated exchange are
// surfaced as 500.

// GitHubCallbackHandler completes the GitHub OAuth flow.
func (s *Server) GitHubCallbackHandler() http.HandlerFunc {
	return s.callbackHandler(sessions.ProviderGitHub)
}

// NotionCallbackHandler completes the Notion OAuth flow.
func (s *Server) NotionCallbackHandler() http.HandlerFunc {
	return s.callbackHandler(sessions.ProviderNotion)
}

func (s *Server) callbackHandler(p sessions.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.cookies(w, r)
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		storedState, _ := c.Get(stateCookieName(p))
		c.Clear(stateCookieName(p)) // flow cookies are consumed exactly once

		if code == "" || state == "" || storedState == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if state != storedState {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.completeCallback(w, r, c, p, code, "")
	}
}

// GoogleCallbackHandler completes both Google flows. Which logical
// integration is being linked (Drive or Gmail) is read back out of the
// state value after the equality check.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.cookies(w, r)
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		storedState, _ := c.Get(googleStateCookieName)
		verifier, _ := c.Get(googleVerifierCookieName)
		c.Clear(googleStateCookieName)
		c.Clear(googleVerifierCookieName)

		if code == "" || state == "" || storedState == "" || verifier == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if state != storedState {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var p sessions.Provider
		switch target, _, _ := strings.Cut(state, "."); target {
		case "drive":
			p = sessions.ProviderGoogleDrive
		case "gmail":
			p = sessions.ProviderGmail
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.completeCallback(w, r, c, p, code, verifier)
	}
}

func (s *Server) completeCallback(w http.ResponseWriter, r *http.Request, c *Cookies, p sessions.Provider, code, verifier string) {
	ctx := r.Context()
	client := s.clients[p]

	tokens, err := client.Exchange(ctx, code, verifier)
	if err != nil {
		log.Debug().Err(err).Str("provider", string(p)).Msg("authorization code exchange failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	identity, err := client.Identify(ctx, tokens)
	if err != nil {
		log.Debug().Err(err).Str("provider", string(p)).Msg("identity fetch failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	manager, _ := s.newAuth(c)
	patch := credentialPatch(tokens, identity)

	// Link onto the current session when the browser has one; otherwise
	// this callback creates the session.
	token := ""
	if existing, ok := c.SessionToken(); ok {
		if session, err := manager.ValidateSessionToken(ctx, existing); err == nil {
			if _, err := manager.LinkProvider(ctx, session.ID, p, patch); err != nil {
				log.Err(err).Str("provider", string(p)).Msg("failed to link provider")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			token = existing
		}
	}
	if token == "" {
		_, created, err := manager.CreateSession(ctx, auth.WithInitialLink(p, patch))
		if err != nil {
			log.Err(err).Str("provider", string(p)).Msg("failed to create session")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		token = created
	}

	c.SetSessionToken(token, int(s.config.GetSessionMaxAge().Seconds()))
	http.Redirect(w, r, "/", http.StatusFound)
}

func credentialPatch(tokens *providers.TokenSet, identity *providers.Identity) sessions.CredentialPatch {
	return sessions.CredentialPatch{
		Username:              utils.Ptr(identity.Username),
		AccessToken:           utils.Ptr(tokens.AccessToken),
		AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
		RefreshToken:          tokens.RefreshToken,
		RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
	}
}
