// Package retry provides bounded retry with pluggable backoff, decoupled from
// the operations that use it.
package retry

import (
	"context"
	"time"
)

// Policy controls how Do retries a failing operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Backoff returns the wait before the next attempt. attempt starts at 1
	// for the wait after the first failure. A nil Backoff means no wait.
	Backoff func(attempt int) time.Duration
	// Retryable reports whether the error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(err error) bool
}

// Do runs op until it succeeds, a non-retryable error occurs, the policy is
// exhausted, or ctx is done. The last operation error is returned; context
// cancellation during a backoff wait returns ctx.Err().
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait <= 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

// Exponential returns a backoff of base * 2^(attempt-1).
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// Linear returns a backoff of base * attempt.
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(attempt)
	}
}
