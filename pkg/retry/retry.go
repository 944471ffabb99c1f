// Package retry re-runs an operation with exponential backoff.
//
// LearnHub wraps storage writes in it: a progress report or a purchase that
// hits lock contention or a dropped connection is attempted again a few
// times before the error reaches the caller.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// marked carries the caller's verdict on an error through Do.
type marked struct {
	err   error
	retry bool
}

func (m *marked) Error() string { return m.err.Error() }
func (m *marked) Unwrap() error { return m.err }

// Retryable marks err as worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, retry: true}
}

// Permanent marks err as final even when a RetryIf predicate would accept it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err}
}

func verdict(err error) (m *marked, ok bool) {
	ok = errors.As(err, &m)
	return m, ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Policy
// ─────────────────────────────────────────────────────────────────────────────

// Policy describes how many times to try and how long to wait in between.
// The wait doubles after every failed attempt and is capped by MaxDelay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter spreads each wait by ±Jitter of its length. 0 disables it.
	Jitter float64

	// RetryIf classifies unmarked errors. Without it only errors wrapped
	// with Retryable are retried.
	RetryIf func(error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Option adjusts a Policy.
type Option func(*Policy)

func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.InitialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.MaxDelay = d
		}
	}
}

// WithJitter accepts values in [0, 1]; anything else is ignored.
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) { p.RetryIf = fn }
}

func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// ─────────────────────────────────────────────────────────────────────────────
// Retrier
// ─────────────────────────────────────────────────────────────────────────────

// Retrier applies a fixed Policy. It holds no state between calls.
type Retrier struct {
	policy Policy
}

// New starts from three attempts, 100ms doubling up to 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	p := Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Jitter:       0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// DatabaseRetrier is the preset for storage calls: short waits, few tries.
func DatabaseRetrier(opts ...Option) *Retrier {
	preset := []Option{
		WithMaxAttempts(3),
		WithInitialDelay(50 * time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(0.05),
	}
	return New(append(preset, opts...)...)
}

// Do calls op until it succeeds, returns an error that should not be
// retried, or the attempts run out. Markers added by Retryable and Permanent
// are stripped from the returned error. When ctx ends during a wait the last
// operation error is returned.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	var last error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		again := false
		if m, ok := verdict(err); ok {
			err, again = m.err, m.retry
			if again && r.policy.RetryIf != nil {
				again = r.policy.RetryIf(err)
			}
		} else if r.policy.RetryIf != nil {
			again = r.policy.RetryIf(err)
		}
		last = err

		if !again || attempt >= r.policy.MaxAttempts {
			return err
		}

		delay := r.backoff(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

// backoff returns the wait after the given failed attempt (1-based).
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.policy.InitialDelay
	for i := 1; i < attempt && d < r.policy.MaxDelay; i++ {
		d *= 2
	}
	d = min(d, r.policy.MaxDelay)

	if r.policy.Jitter > 0 {
		spread := float64(d) * r.policy.Jitter
		d += time.Duration(spread * (rand.Float64()*2 - 1))
	}
	return max(d, 0)
}

// Do runs op under a one-off Retrier built from opts.
func Do(ctx context.Context, op func(context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWith is Do for operations that produce a value.
func DoWith[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}
