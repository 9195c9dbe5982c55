package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces this store's keys.
const DefaultRedisPrefix = "playkit:"

// RedisStore persists records in Redis, for hosts where the "device" is a
// server-side session rather than a local filesystem. Records with an expiry
// carry a matching key TTL so Redis drops them on its own.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix falls back to
// DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) recordKey(gameID string) string {
	return s.prefix + "auth:" + gameID
}

func (s *RedisStore) sharedKey() string {
	return s.prefix + "auth:shared"
}

func (s *RedisStore) Load(ctx context.Context, gameID string) (*Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading auth record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing auth record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, gameID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding auth record: %w", err)
	}
	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			// Already expired; persisting it would resurrect a dead token.
			return s.Clear(ctx, gameID)
		}
	}
	if err := s.client.Set(ctx, s.recordKey(gameID), data, ttl).Err(); err != nil {
		return fmt.Errorf("saving auth record: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, gameID string) error {
	if err := s.client.Del(ctx, s.recordKey(gameID)).Err(); err != nil {
		return fmt.Errorf("clearing auth record: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadShared(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.sharedKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading shared token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) SaveShared(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.sharedKey(), token, 0).Err(); err != nil {
		return fmt.Errorf("saving shared token: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"auth:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning auth records: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clearing auth records: %w", err)
	}
	return nil
}
