package ports

import (
	"context"
	"time"
)

// RateLimitResult describes the state of one counter after a hit.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts hits per route and client within a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, route, client string, limit int) (RateLimitResult, error)
}
