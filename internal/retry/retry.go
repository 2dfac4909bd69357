// Package retry runs an operation with exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is matched by errors returned once every attempt failed with a
// retryable error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy controls how Do retries.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// InitialBackoff is the delay before the first retry. It doubles after
	// every retryable failure and is not capped.
	InitialBackoff time.Duration
	// Retryable decides whether an error may be retried. A nil predicate
	// retries every error.
	Retryable func(error) bool
	// Sleep replaces the real timer, mainly for tests.
	Sleep SleepFunc
	// OnRetry is invoked before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// ExhaustedError carries the last failure after all attempts were consumed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// Do calls op until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx is done. attempt is 1-based.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	_, err := Value(ctx, p, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	backoff := p.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, backoff, err)
		}
		if err := sleep(ctx, backoff); err != nil {
			return zero, err
		}
		backoff *= 2
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// Sleep waits for d using a timer and returns early with ctx.Err() when ctx
// is done first.
func Sleep(ctx context.Context, d time.Duration) error {
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
