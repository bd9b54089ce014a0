package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thibou/auth-api/internal/core/ports"
)

const defaultWindow = time.Minute

// RateLimiter implements ports.RateLimiter as a fixed-window counter in Redis.
// Key format: ratelimit:<route>:<client>
type RateLimiter struct {
	client redis.UniversalClient
	window time.Duration
}

// NewRateLimiter creates a RateLimiter wrapping the given Redis client.
func NewRateLimiter(client redis.UniversalClient, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = defaultWindow
	}
	return &RateLimiter{client: client, window: window}
}

// Allow records a hit for client on route and reports whether it fits in limit.
func (l *RateLimiter) Allow(ctx context.Context, route, client string, limit int) (ports.RateLimitResult, error) {
	key := l.key(route, client)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return ports.RateLimitResult{}, fmt.Errorf("rate limit incr: %w", err)
	}
	// The window starts with the first hit.
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return ports.RateLimitResult{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return ports.RateLimitResult{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

func (l *RateLimiter) key(route, client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", route, client)
}
