package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry tells Blocking that the call should be tried again.
var ErrRetry = errors.New("retry")

// ErrExhausted is returned from a Limited Backoff when it runs out of attempts.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Backoff is a (blocking) function returns when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff function that waits for a fixed interval.
var StaticBackoff = func(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff returns a Backoff function that waits with exponential backoff.
//
// For N-th call, it waits for `initialInterval * r^N` or context to be done.
var ExponentialBackoff = func(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(int64(float64(interval) * r))
			return nil
		}
	}
}

// Limited makes b give up after `attempts` retries.
//
// Once exhausted, it returns ErrExhausted without waiting.
func Limited(b Backoff, attempts int) Backoff {
	n := 0
	return func(ctx context.Context) error {
		if attempts <= n {
			return ErrExhausted
		}
		n += 1
		return b(ctx)
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// f is called once immediately, and then after each backoff.
//
// # Args
//
// - ctx: context
//
// - b: backoff function
//
// - f: function to be called. If f returns an error wrapping ErrRetry,
// Blocking calls f again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f, or by b when b gives up.
// When b gives up, the error also wraps the last error from f.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if berr := b(ctx); berr != nil {
			return last, errors.Join(berr, err)
		}
	}
}
