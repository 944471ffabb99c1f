package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every service instance.
// Each window gets its own key; the first hit of a window sets the expiry.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window for each identifier.
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = rateLimitTTL
	}
	return &RateLimiter{
		client: cache.Client(),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow counts one request for identifier. It returns whether the request is
// within the limit and, when it is not, how long until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, identifier string) (bool, time.Duration, error) {
	now := l.now()
	windowIndex := now.UnixNano() / int64(l.window)
	key := RateLimitKey(identifier, windowIndex)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("rate limiter: %w", err)
	}

	if incr.Val() > int64(l.limit) {
		windowEnd := time.Unix(0, (windowIndex+1)*int64(l.window))
		return false, windowEnd.Sub(now), nil
	}
	return true, 0, nil
}
