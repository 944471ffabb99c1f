package http

import (
	"context"
	"sync"
	"time"
)

// memoryRateLimiter keeps, per key, the timestamps of requests accepted in
// the last window (a sliding log). It is per process; deployments with more
// than one instance use the Redis limiter instead.
type memoryRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	nextSweep time.Time
}

func newMemoryRateLimiter(limit int, window time.Duration) *memoryRateLimiter {
	return &memoryRateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow never fails; the error is there to satisfy RateLimiter.
func (rl *memoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	if !now.Before(rl.nextSweep) {
		rl.sweep(cutoff)
		rl.nextSweep = now.Add(rl.window)
	}

	recent := dropOlder(rl.hits[key], cutoff)
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false, recent[0].Sub(cutoff), nil
	}
	rl.hits[key] = append(recent, now)
	return true, 0, nil
}

// sweep forgets keys with no request inside the window.
func (rl *memoryRateLimiter) sweep(cutoff time.Time) {
	for key, ts := range rl.hits {
		if ts = dropOlder(ts, cutoff); len(ts) == 0 {
			delete(rl.hits, key)
		} else {
			rl.hits[key] = ts
		}
	}
}

// dropOlder trims the sorted prefix of timestamps at or before cutoff.
func dropOlder(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
