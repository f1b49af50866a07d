// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPolicy indicates a policy with negative retries or delay.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// Delay is the wait between attempts.
	Delay time.Duration
}

// None disables retries.
var None = Policy{}

// Validate reports whether the policy is usable.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidPolicy, p.MaxRetries)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0, got %s", ErrInvalidPolicy, p.Delay)
	}
	return nil
}

// Attempts returns the total number of attempts the policy allows,
// saturating at math.MaxInt.
func (p Policy) Attempts() int {
	if p.MaxRetries >= math.MaxInt {
		return math.MaxInt
	}
	return p.MaxRetries + 1
}

// Result contains the outcome of a retried operation.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the error from the last attempt if every attempt failed.
	// It is never wrapped.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent, delays included.
	Duration time.Duration
}

// OnRetry is called after a failed attempt that will be retried.
// attempt is 1-based.
type OnRetry func(attempt int, err error)

// Do executes fn until it succeeds or the policy is exhausted.
//
// The attempt number passed to fn is 1-based. Delays are plain waits and
// are not interrupted by ctx; ctx is only handed through to fn.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), onRetry OnRetry) Result[T] {
	start := time.Now()

	// Compare against MaxRetries rather than Attempts() so math.MaxInt
	// cannot overflow the bound.
	for attempt := 1; ; attempt++ {
		value, err := fn(ctx, attempt)
		if err == nil {
			return Result[T]{
				Value:    value,
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		if attempt > p.MaxRetries {
			return Result[T]{
				Err:      err,
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if p.Delay > 0 {
			time.Sleep(p.Delay)
		}
	}
}
