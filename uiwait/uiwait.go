// Package uiwait drives bounded readiness waits for browser-session
// probes: locate an element, watch a URL change, read a page state.
// The engine never touches a browser driver; the caller supplies the
// probe, and uiwait supplies the deadline, the pacing, the failure
// classification, and a per-session circuit breaker so a wedged
// session stops burning probe calls.
package uiwait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snailtrap/client-go/retry"
)

// Probe pacing defaults, tuned for browser-driven checks.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// probeTick bounds individual sleeps so context cancellation is
// observed promptly even with long probe intervals.
const probeTick = 250 * time.Millisecond

// ErrTimeout marks a wait that ran out its time budget without the
// probe ever succeeding. Check with errors.Is.
var ErrTimeout = errors.New("condition not met within timeout")

// FailureContext describes a wait that ended without success. It is
// handed to the failure hook so callers can capture diagnostics, such
// as a screenshot, while the session is still in the failed state.
type FailureContext struct {
	// Description is the desc the wait was started with.
	Description string
	// Elapsed is how long the wait ran.
	Elapsed time.Duration
	// Attempts counts the probe cycles begun, including the one that
	// ended the wait.
	Attempts int
	// LastErr is the error that ended the wait: the final probe
	// failure for a timeout, the fatal error for an abort.
	LastErr error
}

// Config configures an Engine. The zero value is usable; all fields
// are optional.
type Config struct {
	// Timeout bounds each wait. Zero uses DefaultTimeout. A per-call
	// WithTimeout overrides it.
	Timeout time.Duration

	// Interval is the pause between probe attempts. Zero uses
	// DefaultInterval.
	Interval time.Duration

	// Classifier decides whether a probe failure is worth another
	// attempt. Nil treats every failure as retryable, which suits
	// probes whose errors mean "not there yet".
	Classifier retry.Classifier

	// BreakerThreshold is the number of consecutive retryable probe
	// failures that opens the session's breaker. Zero uses
	// retry.DefaultBreakerThreshold.
	BreakerThreshold uint32

	// BreakerCooldown is how long an open breaker waits before
	// admitting a single probe. Zero uses retry.DefaultBreakerCooldown.
	BreakerCooldown time.Duration

	// OnFailure, when non-nil, runs exactly once when a wait ends
	// without success. Panics in the hook are contained.
	OnFailure func(FailureContext)

	// Logger receives wait failures and breaker transitions. Nil
	// discards.
	Logger *slog.Logger
}

// Engine runs waits for one browser session. Sessions fail as a unit,
// so the circuit breaker lives here: consecutive probe failures in any
// wait open it, and every later wait on the session aborts fast until
// the cooldown admits a probe. Create one Engine per session.
type Engine struct {
	cfg     Config
	breaker *retry.Breaker
	log     *slog.Logger
}

// New creates an engine for one browser session.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	e := &Engine{cfg: cfg, log: log}
	e.breaker = retry.NewBreaker(retry.BreakerConfig{
		Name:      "uiwait",
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
		OnStateChange: func(name string, from, to retry.State) {
			log.Warn("session breaker state change", "from", from, "to", to)
		},
	})
	return e
}

// BreakerState reports the session breaker's current state.
func (e *Engine) BreakerState() retry.State {
	return e.breaker.State()
}

// WaitOption adjusts a single wait.
type WaitOption func(*waitConfig)

type waitConfig struct {
	timeout  time.Duration
	interval time.Duration
}

// WithTimeout overrides the engine's timeout for one wait.
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = d
	}
}

// WithInterval overrides the engine's probe interval for one wait.
func WithInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.interval = d
	}
}

// For runs probe until it succeeds, returning its value. desc names
// the condition in failures ("login button visible").
//
// A failing probe is not an event: it is retried at the engine's
// interval until the time budget runs out. A failure the classifier
// marks fatal aborts the wait at once, as does an open session
// breaker or a cancelled context. Whatever ends an unsuccessful wait
// is reported to the engine's OnFailure hook exactly once, then
// returned; timeouts come back wrapped in ErrTimeout.
func For[T any](ctx context.Context, e *Engine, desc string, probe func(context.Context) (T, error), opts ...WaitOption) (T, error) {
	var zero T

	wc := waitConfig{timeout: e.cfg.Timeout, interval: e.cfg.Interval}
	for _, opt := range opts {
		opt(&wc)
	}

	start := time.Now()
	deadline := start.Add(wc.timeout)
	attempts := 0
	var lastErr error

	fail := func(err error) (T, error) {
		e.failed(desc, time.Since(start), attempts, err)
		return zero, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		attempts++

		var value T
		_, err := e.breaker.Execute(e.shouldTrip, func() (interface{}, error) {
			v, probeErr := probe(ctx)
			value = v
			return nil, probeErr
		})
		switch {
		case err == nil:
			return value, nil
		case errors.Is(err, retry.ErrOpen):
			return fail(err)
		case e.classify(err) == retry.ClassFatal:
			return fail(err)
		default:
			lastErr = err
		}

		if !sleepUntilNextProbe(ctx, deadline, wc.interval) {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			return fail(fmt.Errorf("wait for %s: %w (last: %v)", desc, ErrTimeout, lastErr))
		}
	}
}

func (e *Engine) classify(err error) retry.Class {
	if e.cfg.Classifier == nil {
		return retry.ClassRetryable
	}
	return e.cfg.Classifier(err)
}

func (e *Engine) shouldTrip(err error) bool {
	return e.classify(err) == retry.ClassRetryable
}

// failed logs the terminal failure and runs the hook. Hook panics are
// contained so a broken diagnostics callback cannot take down the
// test run.
func (e *Engine) failed(desc string, elapsed time.Duration, attempts int, lastErr error) {
	e.log.Warn("wait failed",
		"desc", desc, "elapsed", elapsed, "attempts", attempts, "error", lastErr)

	hook := e.cfg.OnFailure
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("failure hook panicked", "desc", desc, "panic", r)
		}
	}()
	hook(FailureContext{
		Description: desc,
		Elapsed:     elapsed,
		Attempts:    attempts,
		LastErr:     lastErr,
	})
}

// sleepUntilNextProbe pauses for the probe interval, never past the
// deadline, in short ticks so cancellation is noticed promptly. It
// reports false when the wait should stop.
func sleepUntilNextProbe(ctx context.Context, deadline time.Time, interval time.Duration) bool {
	wait := interval
	if remaining := time.Until(deadline); remaining < wait {
		wait = remaining
	}
	if wait <= 0 {
		return false
	}

	end := time.Now().Add(wait)
	for {
		tick := time.Until(end)
		if tick <= 0 {
			break
		}
		if tick > probeTick {
			tick = probeTick
		}
		timer := time.NewTimer(tick)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	return time.Now().Before(deadline)
}
