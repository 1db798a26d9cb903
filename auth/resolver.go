package auth

import (
	"context"
	"time"

	"github.com/onesearch/onesearch/providers"
	"github.com/onesearch/onesearch/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// expirySkew treats a token as expired slightly early to absorb clock drift
// between us and the provider.
const expirySkew = 60 * time.Second

// Refresher exchanges a refresh token for a fresh token set. Every
// providers.Client satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*providers.TokenSet, error)
}

// Resolver answers "give me a usable access token for this provider",
// transparently refreshing expired tokens and persisting the result. It is
// invoked independently per request per linked provider; two concurrent
// refreshes for the same session race with last-write-wins on the record,
// which is accepted (either resulting token is honored by the provider).
type Resolver struct {
	manager    *Manager
	refreshers map[sessions.Provider]Refresher
	nowTime    func() time.Time
}

// ResolverOption modifies a Resolver at construction time.
type ResolverOption func(*Resolver)

// WithResolverNowTime sets the time source (primarily for testing).
func WithResolverNowTime(nowFunc func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowTime = nowFunc
	}
}

// NewResolver creates an access-token resolver. refreshers maps each
// refresh-capable provider to its client; providers absent from the map are
// never refreshed.
func NewResolver(manager *Manager, refreshers map[sessions.Provider]Refresher, options ...ResolverOption) (*Resolver, error) {
	if manager == nil {
		return nil, errors.New("[NewResolver] session manager is required")
	}

	r := &Resolver{
		manager:    manager,
		refreshers: refreshers,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// AccessToken returns a currently-valid access token for the provider, or
// ok=false when the provider is unlinked or cannot be silently recovered.
// Failure here is a normal outcome, never an error: the caller renders the
// provider as "not connected" and moves on.
func (r *Resolver) AccessToken(ctx context.Context, session *sessions.Session, p sessions.Provider) (string, bool) {
	creds := session.Credentials(p)
	if creds.AccessToken == nil {
		return "", false
	}

	now := r.nowTime()

	// A token with no recorded expiry never expires.
	if creds.AccessTokenExpiresAt == nil || now.Before(creds.AccessTokenExpiresAt.Add(-expirySkew)) {
		return *creds.AccessToken, true
	}

	if creds.RefreshToken == nil {
		return "", false
	}
	if creds.RefreshTokenExpiresAt != nil && !now.Before(*creds.RefreshTokenExpiresAt) {
		return "", false
	}

	refresher, ok := r.refreshers[p]
	if !ok {
		return "", false
	}

	tokens, err := refresher.Refresh(ctx, *creds.RefreshToken)
	if err != nil {
		log.Debug().Err(err).Str("provider", string(p)).Msg("access token refresh failed")
		return "", false
	}

	// Only overwrite the refresh token when the provider reissued one; the
	// patch's nil fields leave stored values alone.
	patch := sessions.CredentialPatch{
		AccessToken:           &tokens.AccessToken,
		AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
		RefreshToken:          tokens.RefreshToken,
		RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
	}

	if _, err := r.manager.LinkProvider(ctx, session.ID, p, patch); err != nil {
		log.Debug().Err(err).Str("provider", string(p)).Msg("refreshed token persist failed")
		return "", false
	}

	// Keep the caller's in-memory record consistent with what was stored.
	session.Link(p, patch)

	return tokens.AccessToken, true
}
