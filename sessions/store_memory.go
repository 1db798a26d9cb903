package sessions

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a Store backed by an in-process TTL cache. Suited to
// single-instance deployments and tests; records vanish on restart.
type MemoryStore struct {
	cache *ttlcache.Cache[string, *Session]
	ttl   time.Duration
}

// NewMemoryStore creates an in-memory store whose records expire ttl after
// their last write, with automatic background cleanup.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Session](),
	)
	go cache.Start()

	return &MemoryStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value().Clone(), nil
}

// Upsert implements Store.Upsert.
func (s *MemoryStore) Upsert(_ context.Context, session *Session) error {
	s.cache.Set(session.ID, session.Clone(), s.ttl)
	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// DeleteExpired implements Store.DeleteExpired. The cache already evicts on
// its own TTL; this additionally honors an explicit cutoff for sweeps.
func (s *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) error {
	var expired []string
	s.cache.Range(func(item *ttlcache.Item[string, *Session]) bool {
		if item.Value().LastVerifiedAt.Before(cutoff) {
			expired = append(expired, item.Key())
		}
		return true
	})
	for _, id := range expired {
		s.cache.Delete(id)
	}
	return nil
}

// Stop halts the background cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}
