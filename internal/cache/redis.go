package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stayhaven/booking-backend/internal/config"
)

// ErrCacheMiss is returned when a key is not present
var ErrCacheMiss = fmt.Errorf("cache miss")

// Client wraps the Redis connection used for read-side caching.
// A nil *Client is safe to use; every method becomes a no-op miss, so
// the service layer never has to branch on whether caching is enabled.
type Client struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// NewClient connects to Redis and verifies the connection
func NewClient(cfg config.RedisConfig, logger *logrus.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// GetJSON reads a key and unmarshals it into dest. Returns ErrCacheMiss
// when the key does not exist.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return ErrCacheMiss
	}

	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	return json.Unmarshal([]byte(val), dest)
}

// SetJSON marshals value and stores it under key with a TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}

	return nil
}

// Delete removes specific keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteByPattern removes every key matching the glob pattern. Writes
// that change availability or ratings call this so stale reads age out
// immediately instead of waiting for the TTL.
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) error {
	if c == nil {
		return nil
	}

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache pattern %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys for pattern %s: %w", pattern, err)
	}

	c.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"count":   len(keys),
	}).Debug("Cache keys invalidated")

	return nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("cache disabled")
	}
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
