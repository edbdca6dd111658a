package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is an alternative backend for server-side embeddings of the
// SDK, where device state lives in a shared redis rather than on local disk.
type RedisStore struct {
	client *redis.Client
	prefix string
}

const redisOpTimeout = 3 * time.Second

// NewRedisStore creates a redis-backed store. The prefix namespaces all
// keys, typically per device id.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Get returns the value for key and whether it exists.
func (rs *RedisStore) Get(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := rs.client.Get(ctx, rs.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return raw, true, nil
}

// Set stores value under key without expiry; the cache staleness window is
// enforced by the Cache layer, not the backend.
func (rs *RedisStore) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rs.client.Set(ctx, rs.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (rs *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
