// Package storage provides Redis cache management
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// RedisClient wraps redis.Client with JSON get/set/delete semantics
type RedisClient struct {
	client *redis.Client
	config *types.RedisConfig
	logger *utils.Logger
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config *types.RedisConfig, logger *utils.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.Database,

		PoolSize:     10,
		MinIdleConns: 5,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")

	return &RedisClient{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Client exposes the underlying redis.Client for components that need
// raw commands (the Redis-backed rate limiter).
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Ping tests Redis connectivity
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set stores a key-value pair with TTL
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return r.client.Set(ctx, key, data, ttl).Err()
}

// Get retrieves a value by key into dest
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("key not found: %s", key)
		}
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

// Delete removes keys
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// CacheManager provides prefixed caching on top of the Redis client
type CacheManager struct {
	redis     *RedisClient
	keyPrefix string
}

func NewCacheManager(redis *RedisClient, prefix string) *CacheManager {
	return &CacheManager{
		redis:     redis,
		keyPrefix: prefix + ":",
	}
}

// Set caches a value with TTL
func (c *CacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.redis.Set(ctx, c.keyPrefix+key, value, ttl)
}

// Get retrieves a cached value
func (c *CacheManager) Get(ctx context.Context, key string, dest interface{}) error {
	return c.redis.Get(ctx, c.keyPrefix+key, dest)
}

// Delete removes a cached value
func (c *CacheManager) Delete(ctx context.Context, key string) error {
	return c.redis.Delete(ctx, c.keyPrefix+key)
}

// CharacterCache caches character lookups
type CharacterCache struct {
	*CacheManager
}

func NewCharacterCache(redis *RedisClient) *CharacterCache {
	return &CharacterCache{
		CacheManager: NewCacheManager(redis, "character"),
	}
}

// APIKeyCache caches API key validation results
type APIKeyCache struct {
	*CacheManager
}

func NewAPIKeyCache(redis *RedisClient) *APIKeyCache {
	return &APIKeyCache{
		CacheManager: NewCacheManager(redis, "apikey"),
	}
}
