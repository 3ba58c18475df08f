// Package redis implements storage interfaces on top of Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"solana-sniper/internal/storage"
)

// DefaultKeyPrefix namespaces dedup keys.
const DefaultKeyPrefix = "sniper:seen:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MinIdleConns: 2,
		PoolSize:     16,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// SeenStore implements storage.SeenStore with SET NX, so several sniper
// processes watching the same account share one dedup window.
type SeenStore struct {
	client *redis.Client
	prefix string
}

// NewSeenStore creates a SeenStore. An empty prefix uses DefaultKeyPrefix.
func NewSeenStore(client *redis.Client, prefix string) *SeenStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SeenStore{client: client, prefix: prefix}
}

// Compile-time interface check.
var _ storage.SeenStore = (*SeenStore)(nil)

// MarkSeen records signature and reports whether it was new.
// ttl <= 0 keeps the key until it is evicted.
func (s *SeenStore) MarkSeen(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	if signature == "" {
		return false, storage.ErrInvalidInput
	}
	if ttl < 0 {
		ttl = 0
	}

	fresh, err := s.client.SetNX(ctx, s.prefix+signature, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return fresh, nil
}
