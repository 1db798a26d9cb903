package auth

import (
	"context"
	"strings"
	"time"

	"github.com/onesearch/onesearch/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// inactivityTimeout deletes sessions not seen for 30 days.
	inactivityTimeout = 30 * 24 * time.Hour
	// activityCheckInterval amortizes LastVerifiedAt writes: the timestamp
	// is only rewritten when more than a day has passed since the last one.
	activityCheckInterval = 24 * time.Hour
)

// ErrNoSession is the single outcome for every way a session can fail to
// resolve: malformed token, unknown id, secret mismatch, inactivity expiry,
// or storage failure. Callers must not be able to distinguish them.
var ErrNoSession = errors.New("no valid session")

// Manager owns the session lifecycle: creation, token validation, lazy
// inactivity expiry, and per-provider credential patching.
type Manager struct {
	store   sessions.Store
	nowTime func() time.Time
}

// ManagerOption modifies a Manager at construction time.
type ManagerOption func(*Manager)

// WithNowTime sets the time source (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store sessions.Store, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] session store is required")
	}

	m := &Manager{
		store:   store,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// CreateOption seeds a session at creation time.
type CreateOption func(*sessions.Session)

// WithInitialLink attaches a provider's credentials to the session being
// created, for the first OAuth callback of a new browser.
func WithInitialLink(p sessions.Provider, patch sessions.CredentialPatch) CreateOption {
	return func(s *sessions.Session) {
		s.Link(p, patch)
	}
}

// CreateSession generates a fresh id/secret pair, persists the record with
// only the secret's hash, and returns the record plus the plaintext token
// ("<id>.<secret>") destined for the session cookie. The secret is never
// returned or recoverable again after this call.
func (m *Manager) CreateSession(ctx context.Context, options ...CreateOption) (*sessions.Session, string, error) {
	now := m.nowTime()
	id := GenerateSecureRandomString()
	secret := GenerateSecureRandomString()

	session := &sessions.Session{
		ID:             id,
		SecretHash:     HashSecret(secret),
		CreatedAt:      now,
		LastVerifiedAt: now,
	}
	for _, opt := range options {
		opt(session)
	}

	if err := m.store.Upsert(ctx, session); err != nil {
		return nil, "", errors.Wrap(err, "[Manager CreateSession] persist session")
	}
	return session, id + "." + secret, nil
}

// ValidateSessionToken resolves a session cookie value to its record. The
// supplied secret is hashed and compared against the stored hash in constant
// time. On success, LastVerifiedAt is refreshed if more than a day old.
func (m *Manager) ValidateSessionToken(ctx context.Context, token string) (*sessions.Session, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrNoSession
	}
	id, secret := parts[0], parts[1]

	session, err := m.GetSession(ctx, id)
	if err != nil {
		return nil, ErrNoSession
	}

	if !ConstantTimeEqual(HashSecret(secret), session.SecretHash) {
		return nil, ErrNoSession
	}

	now := m.nowTime()
	if now.Sub(session.LastVerifiedAt) >= activityCheckInterval {
		session.LastVerifiedAt = now
		if err := m.store.Upsert(ctx, session); err != nil {
			log.Debug().Err(err).Msg("session liveness update failed")
			return nil, ErrNoSession
		}
	}

	return session, nil
}

// GetSession fetches a session by id, lazily deleting it when it has been
// inactive for the full timeout.
func (m *Manager) GetSession(ctx context.Context, id string) (*sessions.Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}

	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, ErrNoSession
	}

	if m.nowTime().Sub(session.LastVerifiedAt) >= inactivityTimeout {
		if err := m.store.Delete(ctx, id); err != nil {
			log.Debug().Err(err).Msg("expired session cleanup failed")
		}
		return nil, ErrNoSession
	}

	return session, nil
}

// DeleteSession removes a session unconditionally.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "[Manager DeleteSession] delete session")
	}
	return nil
}

// LinkProvider merge-patches one provider's credentials onto an existing
// session, leaving all other fields untouched.
func (m *Manager) LinkProvider(ctx context.Context, id string, p sessions.Provider, patch sessions.CredentialPatch) (*sessions.Session, error) {
	session, err := m.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Link(p, patch)
	if err := m.store.Upsert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Manager LinkProvider] persist session")
	}
	return session, nil
}

// UnlinkProvider clears exactly one provider's credentials. The session
// itself survives even when this was the last linked provider.
func (m *Manager) UnlinkProvider(ctx context.Context, id string, p sessions.Provider) (*sessions.Session, error) {
	session, err := m.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Unlink(p)
	if err := m.store.Upsert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Manager UnlinkProvider] persist session")
	}
	return session, nil
}

// SweepExpired removes every session past the inactivity timeout. Lazy
// deletion on access remains the correctness mechanism; this bounds storage
// growth for deployments that enable the background sweep.
func (m *Manager) SweepExpired(ctx context.Context) error {
	cutoff := m.nowTime().Add(-inactivityTimeout)
	if err := m.store.DeleteExpired(ctx, cutoff); err != nil {
		return errors.Wrap(err, "[Manager SweepExpired] delete expired sessions")
	}
	return nil
}
