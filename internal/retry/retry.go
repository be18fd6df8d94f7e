// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds an operation to Attempts tries separated by Delay.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Op is one attempt. attempt is 1-based.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Observer is notified after every failed attempt.
type Observer func(attempt int, err error)

// ExhaustedError is returned when every attempt failed. Last holds the
// error from the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls op until it succeeds or the policy is exhausted. No delay follows
// the final attempt. A cancelled context ends the loop with ctx.Err().
func Do[T any](ctx context.Context, p Policy, op Op[T]) (T, error) {
	return DoNotify(ctx, p, op, nil)
}

// DoNotify is Do with an observer for failed attempts.
func DoNotify[T any](ctx context.Context, p Policy, op Op[T], notify Observer) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if notify != nil {
			notify(attempt, err)
		}

		if attempt == attempts {
			break
		}
		if p.Delay > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}
