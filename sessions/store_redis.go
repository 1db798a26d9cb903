package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for multi-instance deployments.
// Each record is a JSON value with a TTL equal to the inactivity timeout, so
// Redis itself bounds storage growth from abandoned sessions.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. prefix namespaces the keys so
// several applications can share one Redis instance.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisStore Get] read session")
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, errors.Wrap(err, "[RedisStore Get] decode session")
	}
	return &session, nil
}

// Upsert implements Store.Upsert.
func (s *RedisStore) Upsert(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisStore Upsert] encode session")
	}
	if err := s.client.Set(ctx, s.key(session.ID), payload, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore Upsert] write session")
	}
	return nil
}

// Delete implements Store.Delete.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore Delete] delete session")
	}
	return nil
}

// DeleteExpired implements Store.DeleteExpired. Key TTLs already evict
// abandoned sessions; the scan additionally honors an explicit cutoff.
func (s *RedisStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	iter := s.client.Scan(ctx, 0, fmt.Sprintf("%s:session:*", s.prefix), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue // key expired between scan and read
		}
		var session Session
		if err := json.Unmarshal(payload, &session); err != nil {
			continue
		}
		if session.LastVerifiedAt.Before(cutoff) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return errors.Wrap(err, "[RedisStore DeleteExpired] delete session")
			}
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "[RedisStore DeleteExpired] scan sessions")
	}
	return nil
}
