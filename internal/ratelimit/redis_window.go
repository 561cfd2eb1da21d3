package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is the fixed-window counter backed by Redis, for
// deployments running multiple stateless router instances behind a
// load balancer. Same window semantics as FixedWindowLimiter; the
// window boundary is the key's TTL.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
	window    time.Duration
	limit     int
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter.
func NewRedisLimiter(client *redis.Client, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		keyPrefix: "rate_limit:",
		window:    window,
		limit:     limit,
	}
}

// Admit implements Limiter using INCR plus a TTL set on first hit.
func (l *RedisLimiter) Admit(ctx context.Context, callerID string) (bool, error) {
	key := l.keyPrefix + callerID

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline failed: %w", err)
	}

	return incr.Val() <= int64(l.limit), nil
}

// Reset clears the window for a caller.
func (l *RedisLimiter) Reset(ctx context.Context, callerID string) error {
	return l.client.Del(ctx, l.keyPrefix+callerID).Err()
}
