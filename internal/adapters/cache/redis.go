package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenCache shares tokens between processes through Redis.
// Expiry is delegated to the key TTL.
type RedisTokenCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisTokenCache creates a cache storing keys below prefix
func NewRedisTokenCache(client redis.Cmdable, prefix string) *RedisTokenCache {
	return &RedisTokenCache{
		client: client,
		prefix: prefix,
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("redis connection failed", "address", addr, "error", err)
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	slog.Info("redis connection established", "address", addr)
	return rdb, nil
}

func (c *RedisTokenCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Get returns the token stored under key
func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	token, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading token %s: %w", key, err)
	}
	return token, true, nil
}

// Set stores token under key for ttl
func (c *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), token, ttl).Err(); err != nil {
		return fmt.Errorf("writing token %s: %w", key, err)
	}
	return nil
}
