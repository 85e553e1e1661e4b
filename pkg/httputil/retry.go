package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy bounds a retry loop.
type Policy struct {
	Attempts  int           // total attempts, at least 1
	BaseDelay time.Duration // delay before the second attempt
	MaxDelay  time.Duration // cap on any single delay; 0 means uncapped
}

// DefaultPolicy is 3 attempts starting at 1 second, capped at 8 seconds.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
}

// Delay returns the wait before attempt n+1 (n counts from 0).
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry executes fn up to p.Attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt up to
// p.MaxDelay. Returns the last error if all attempts fail, or ctx.Err() if
// cancelled. A pending backoff timer is stopped on cancellation.
func Retry(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			timer := time.NewTimer(p.Delay(i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with
// [DefaultPolicy].
func RetryWithBackoff(ctx context.Context, fn func(context.Context) error) error {
	return Retry(ctx, DefaultPolicy(), fn)
}
