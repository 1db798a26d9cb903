// Package providers holds the per-provider OAuth clients: authorization URL
// construction, code exchange, token refresh, and the "who am I" lookup that
// yields a display username for the integration card.
package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is the normalized result of a code exchange or token refresh.
// Nil fields mean the provider did not supply the value: a nil
// AccessTokenExpiresAt is a token that does not expire, and a nil
// RefreshToken on a refresh response means the old one stays valid.
type TokenSet struct {
	AccessToken           string
	AccessTokenExpiresAt  *time.Time
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time

	// IDToken carries the raw OIDC id_token for providers that return one.
	IDToken string
}

// Identity is the provider's answer to "who am I" for the new access token.
type Identity struct {
	Username string
}

// Client is one provider's OAuth surface. verifier arguments are PKCE code
// verifiers; providers that don't use PKCE ignore them.
type Client interface {
	// AuthCodeURL builds the provider authorization URL for a login attempt.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code, verifier string) (*TokenSet, error)

	// Refresh trades a refresh token for a fresh token set. Providers whose
	// tokens never expire return an error.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	// Identify fetches the display username for the freshly linked account.
	Identify(ctx context.Context, tokens *TokenSet) (*Identity, error)

	// UsesPKCE reports whether login initiation must generate a verifier.
	UsesPKCE() bool
}

// fromOAuth2Token normalizes an x/oauth2 token, including the non-standard
// refresh_token_expires_in extra some providers return.
func fromOAuth2Token(tok *oauth2.Token) *TokenSet {
	ts := &TokenSet{AccessToken: tok.AccessToken}

	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		ts.AccessTokenExpiresAt = &expiry
	}
	if tok.RefreshToken != "" {
		refresh := tok.RefreshToken
		ts.RefreshToken = &refresh
	}
	if secs, ok := extraSeconds(tok.Extra("refresh_token_expires_in")); ok {
		expiresAt := time.Now().Add(time.Duration(secs) * time.Second)
		ts.RefreshTokenExpiresAt = &expiresAt
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = idToken
	}

	return ts
}

// extraSeconds coerces an oauth2 extra field into seconds. Token endpoints
// variously encode durations as JSON numbers or strings.
func extraSeconds(v any) (int64, bool) {
	switch value := v.(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	case json.Number:
		secs, err := value.Int64()
		return secs, err == nil
	case string:
		secs, err := strconv.ParseInt(value, 10, 64)
		return secs, err == nil
	}
	return 0, false
}
