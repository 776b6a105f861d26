// Package retry retries operations that fail with a throttling signal,
// backing off exponentially between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimitError is the throttling signal: HTTP 429 or a provider
// quota-exceeded response. It is the only error Do retries.
type RateLimitError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration // Server hint, zero if absent.
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (status %d): %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

// IsRateLimit reports whether err carries a throttling signal.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Policy controls how many throttled attempts are retried and how long to
// wait between them.
type Policy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration // Caps a single wait; zero means uncapped.

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{Retries: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

// Backoff returns the wait before retrying after attempt n (0-indexed):
// BaseDelay * 2^n, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		d = p.MaxDelay
	}
	return d
}

// Do invokes fn, retrying up to p.Retries times while it fails with a
// *RateLimitError. After the retries are spent it makes one final attempt
// and returns whatever that attempt returns. Any other error is returned
// immediately.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	for attempt := range max(p.Retries, 0) {
		v, err := fn(ctx)
		if err == nil || !IsRateLimit(err) {
			return v, err
		}

		delay := p.Backoff(attempt)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
	}
	return fn(ctx)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
