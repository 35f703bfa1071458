package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Throttle locks a username out after too many failed attempts in a window.
type Throttle struct {
	cache       domain.Cache
	maxAttempts int64
	window      time.Duration
}

// NewThrottle creates a throttle backed by the cache counters.
func NewThrottle(cache domain.Cache, maxAttempts int, window time.Duration) *Throttle {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Throttle{cache: cache, maxAttempts: int64(maxAttempts), window: window}
}

func failuresKey(username string) string { return "auth:failures:" + username }
func lockoutKey(username string) string  { return "auth:lockout:" + username }

// Allow returns ErrTooManyAttempts while username is locked out.
func (t *Throttle) Allow(ctx context.Context, username string) error {
	locked, err := t.cache.Get(ctx, lockoutKey(username))
	if err != nil {
		return fmt.Errorf("check lockout: %w", err)
	}
	if locked != nil {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// Failure counts a failed attempt and starts a lockout once the limit is hit.
func (t *Throttle) Failure(ctx context.Context, username string) (int64, error) {
	n, err := t.cache.IncrementCounter(ctx, failuresKey(username), t.window)
	if err != nil {
		return 0, err
	}
	if n >= t.maxAttempts {
		if err := t.cache.Set(ctx, lockoutKey(username), []byte("1"), t.window); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Success clears the failure count.
func (t *Throttle) Success(ctx context.Context, username string) error {
	return t.cache.ResetCounter(ctx, failuresKey(username))
}
