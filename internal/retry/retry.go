// Package retry runs fallible reads with deterministic exponential backoff.
//
// Only reads go through here. Inserts, updates and deletes are not idempotent
// against the backend, so retrying one after an ambiguous failure could duplicate
// the write. Retrying writes would first need idempotency keys on the backend.
package retry

import (
	"context"
	"time"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 300 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Sleep     SleepFunc
}

func Default() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait after the failed attempt with the given 0-based index.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do calls op until it succeeds or Attempts consecutive calls have failed, then
// returns the last error. After failure i it waits BaseDelay*2^i; there is no
// jitter and no wait after the final attempt.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, p.Delay(i)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
