package sessions

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Store.Get when no record exists for the id.
var ErrNotFound = errors.New("session not found")

// Store persists session records. Exactly one backend is active per
// deployment; the session manager and the OAuth flow handlers never know
// which one.
type Store interface {
	// Get retrieves a session by id, returning ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Session, error)

	// Upsert creates or fully replaces a session record.
	Upsert(ctx context.Context, session *Session) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session whose LastVerifiedAt is before
	// cutoff. Backends whose storage already bounds record lifetime may
	// treat this as a no-op.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}
