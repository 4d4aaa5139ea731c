package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/models"
)

const registryKeyPrefix = "mdm:registry:"

// NewRedisClient creates a Redis client from the provided configuration.
// Returns nil if the URL is empty (Redis not configured).
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisCache keeps registry entries in Redis as JSON strings.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client. The client lifecycle is managed
// by the caller.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, entityID string) (*models.EntityRegistryEntry, bool, error) {
	raw, err := c.client.Get(ctx, registryKeyPrefix+entityID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry models.EntityRegistryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("decode registry entry %s: %w", entityID, err)
	}
	return &entry, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, entry *models.EntityRegistryEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, registryKeyPrefix+entry.EntityID, raw, ttl).Err()
}

// Health checks the Redis connection.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
