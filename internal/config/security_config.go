package config

import "time"

type SecurityConfig interface {
	GetSessionMaxAge() time.Duration
	GetFlowCookieMaxAge() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionMaxAge bounds the session cookie and the store TTLs. Matches
// the 30-day inactivity timeout.
func (Security) GetSessionMaxAge() time.Duration {
	return 30 * 24 * time.Hour
}

// GetFlowCookieMaxAge bounds the OAuth state/verifier cookies; a login
// attempt older than this is abandoned.
func (Security) GetFlowCookieMaxAge() time.Duration {
	return 10 * time.Minute
}
