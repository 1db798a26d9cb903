package config

import "time"

// Session store backend names accepted by SESSION_STORE.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreCookie = "cookie"
)

// StoreConfig selects and parameterizes the session store backend.
type StoreConfig interface {
	GetSessionStore() string
	GetRedisAddr() string
	GetRedisKeyPrefix() string
	GetSQLitePath() string
	GetCookieSigningSecret() string
	GetSweepInterval() time.Duration
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetSessionStore() string {
	return GetEnv("SESSION_STORE", StoreMemory)
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "onesearch")
}

func (Store) GetSQLitePath() string {
	return GetEnv("SQLITE_PATH", "./data/sessions.db")
}

// GetCookieSigningSecret is the application secret the cookie-store signing
// key is derived from. Required for the cookie backend.
func (Store) GetCookieSigningSecret() string {
	return GetEnv("SESSION_COOKIE_SECRET", "")
}

// GetSweepInterval controls the background expired-session sweep. Zero
// disables it; lazy deletion on access still applies.
func (Store) GetSweepInterval() time.Duration {
	raw := GetEnv("SESSION_SWEEP_INTERVAL", "")
	if raw == "" {
		return 0
	}
	interval, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return interval
}
