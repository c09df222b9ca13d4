// Package retry provides bounded, classification-aware retry execution
// with exponential backoff and an optional circuit breaker.
//
// The caller supplies a [Classifier] that decides whether a failure is
// worth another attempt ([ClassRetryable]) or must abort the whole
// operation ([ClassFatal]). Fatal failures return immediately without
// consuming the remaining attempts or waiting out a backoff delay.
// Attempts within one [Do] call are strictly sequential, and the total
// time spent is bounded by both the policy's attempt budget and the
// caller's context, whichever runs out first.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Class describes how a failed attempt should be handled.
type Class int

const (
	// ClassRetryable marks failures worth another attempt.
	ClassRetryable Class = iota
	// ClassFatal marks failures that abort immediately, bypassing the
	// remaining attempts and any backoff delay.
	ClassFatal
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Classifier decides how an error from an attempt should be treated.
// A nil Classifier treats every error as retryable.
type Classifier func(error) Class

// Policy configures retry behavior for a failing operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay increases after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) added to delays
	// to prevent thundering herd.
	Jitter float64
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Delay calculates the delay before retry number attempt (0-based) with
// optional jitter. The pre-jitter schedule never decreases.
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	// Add jitter
	if p.Jitter > 0 {
		jitterAmount := delay * p.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait blocks for the attempt's backoff delay or until ctx is done.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	delay := p.Delay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is returned when every attempt failed with a retryable
// error. It wraps the last failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, a fatal error occurs, the attempt budget
// runs out, or ctx is done.
//
// When breaker is non-nil every attempt passes through it: an open
// breaker rejects the attempt with [ErrOpen] without invoking op, and Do
// returns that rejection immediately instead of burning the remaining
// attempts against a tripped circuit. Only retryable-classified failures
// count toward tripping the breaker.
//
// On exhaustion the last error is returned wrapped in *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, breaker *Breaker, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if classify == nil {
		classify = func(error) Class { return ClassRetryable }
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := p.Wait(ctx, attempt-1); err != nil {
				return zero, err
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		var (
			result T
			err    error
		)
		if breaker != nil {
			shouldTrip := func(e error) bool { return classify(e) == ClassRetryable }
			_, err = breaker.Execute(shouldTrip, func() (interface{}, error) {
				r, opErr := op(ctx)
				result = r
				return nil, opErr
			})
		} else {
			result, err = op(ctx)
		}

		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrOpen) {
			return zero, err
		}
		if classify(err) == ClassFatal {
			return zero, err
		}
		lastErr = err
	}

	return zero, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}
