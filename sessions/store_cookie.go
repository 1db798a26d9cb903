package sessions

import (
	"context"
	"crypto/sha256"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// recordCookieName carries the signed session record in the cookie-only
// deployment variant. Distinct from the "session" token cookie: that one
// holds "<id>.<secret>", this one holds the record itself.
const recordCookieName = "session_record"

// cookieKeyInfo is the HKDF info string binding the derived key to this use.
const cookieKeyInfo = "onesearch session record signing v1"

// CookieCarrier reads and writes named cookies on the active request and
// response. The HTTP layer passes its per-request cookie context in, keeping
// cookie side effects visible in signatures instead of ambient.
type CookieCarrier interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge int)
	Clear(name string)
}

type recordClaims struct {
	jwt.RegisteredClaims
	Session *Session `json:"sess"`
}

// CookieStore is a Store where the cookie is the record: the session is
// serialized into an HMAC-SHA256-signed JWT held by the browser, and the
// server keeps no copy. Constructed per request around that request's cookie
// carrier. DeleteExpired is a no-op since cookie expiry bounds lifetime.
type CookieStore struct {
	carrier CookieCarrier
	key     []byte
	ttl     time.Duration
}

// DeriveCookieKey derives the record-signing key from the application
// secret. Derivation (rather than direct use) keeps the app secret reusable
// for other purposes without cross-protocol key reuse.
func DeriveCookieKey(secret []byte) ([]byte, error) {
	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(cookieKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "[DeriveCookieKey] derive signing key")
	}
	return key, nil
}

// NewCookieStore creates a per-request cookie-backed store. key must come
// from DeriveCookieKey; ttl is the record cookie's max age.
func NewCookieStore(carrier CookieCarrier, key []byte, ttl time.Duration) *CookieStore {
	return &CookieStore{
		carrier: carrier,
		key:     key,
		ttl:     ttl,
	}
}

// Get implements Store.Get. A missing, tampered or mis-signed cookie, or a
// record for a different id, all report ErrNotFound.
func (s *CookieStore) Get(_ context.Context, id string) (*Session, error) {
	value, ok := s.carrier.Get(recordCookieName)
	if !ok {
		return nil, ErrNotFound
	}

	claims := &recordClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Session == nil {
		return nil, ErrNotFound
	}
	if claims.Session.ID != id {
		return nil, ErrNotFound
	}
	return claims.Session, nil
}

// Upsert implements Store.Upsert by re-signing and re-setting the cookie.
func (s *CookieStore) Upsert(_ context.Context, session *Session) error {
	expiresAt := session.LastVerifiedAt.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, recordClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.ID,
			IssuedAt:  jwt.NewNumericDate(session.LastVerifiedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Session: session,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return errors.Wrap(err, "[CookieStore Upsert] sign session record")
	}
	s.carrier.Set(recordCookieName, signed, int(s.ttl.Seconds()))
	return nil
}

// Delete implements Store.Delete by clearing the record cookie.
func (s *CookieStore) Delete(_ context.Context, _ string) error {
	s.carrier.Clear(recordCookieName)
	return nil
}

// DeleteExpired implements Store.DeleteExpired. The signed record carries
// its own expiry; there is no server-side state to sweep.
func (s *CookieStore) DeleteExpired(_ context.Context, _ time.Time) error {
	return nil
}
