package uiwait

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snailtrap/client-go/retry"
)

var errNotVisible = errors.New("element not visible")

// fastEngine returns an engine with millisecond pacing for tests.
func fastEngine(cfg Config) *Engine {
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Millisecond
	}
	return New(cfg)
}

func TestFor_SucceedsImmediately(t *testing.T) {
	hookCalled := false
	e := fastEngine(Config{
		OnFailure: func(FailureContext) { hookCalled = true },
	})

	got, err := For(context.Background(), e, "page title", func(ctx context.Context) (string, error) {
		return "Dashboard", nil
	})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if got != "Dashboard" {
		t.Errorf("value = %q, want Dashboard", got)
	}
	if hookCalled {
		t.Error("failure hook ran on a successful wait")
	}
}

func TestFor_SucceedsOnLaterProbe(t *testing.T) {
	e := fastEngine(Config{Timeout: 2 * time.Second})

	type element struct{ id string }
	var probes atomic.Int32
	got, err := For(context.Background(), e, "login button", func(ctx context.Context) (*element, error) {
		if probes.Add(1) < 3 {
			return nil, errNotVisible
		}
		return &element{id: "login"}, nil
	})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if got == nil || got.id != "login" {
		t.Errorf("value = %+v, want the located element", got)
	}
	if n := probes.Load(); n != 3 {
		t.Errorf("probe ran %d times, want 3", n)
	}
}

func TestFor_Timeout(t *testing.T) {
	var hooks []FailureContext
	e := fastEngine(Config{
		Timeout: 50 * time.Millisecond,
		OnFailure: func(fc FailureContext) {
			hooks = append(hooks, fc)
		},
	})

	_, err := For(context.Background(), e, "login button", func(ctx context.Context) (string, error) {
		return "", errNotVisible
	})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if !strings.Contains(err.Error(), "login button") {
		t.Errorf("err = %v, want the description in the message", err)
	}

	if len(hooks) != 1 {
		t.Fatalf("hook ran %d times, want exactly 1", len(hooks))
	}
	fc := hooks[0]
	if fc.Description != "login button" {
		t.Errorf("Description = %q", fc.Description)
	}
	if fc.Attempts < 1 {
		t.Errorf("Attempts = %d, want at least 1", fc.Attempts)
	}
	if fc.Elapsed < 50*time.Millisecond {
		t.Errorf("Elapsed = %v, want at least the 50ms budget", fc.Elapsed)
	}
	if !errors.Is(fc.LastErr, ErrTimeout) {
		t.Errorf("LastErr = %v, want the timeout error", fc.LastErr)
	}
}

func TestFor_FatalAbortsImmediately(t *testing.T) {
	sessionGone := errors.New("session deleted")
	var hooks []FailureContext
	e := fastEngine(Config{
		Classifier: func(err error) retry.Class {
			if errors.Is(err, sessionGone) {
				return retry.ClassFatal
			}
			return retry.ClassRetryable
		},
		OnFailure: func(fc FailureContext) {
			hooks = append(hooks, fc)
		},
	})

	var probes atomic.Int32
	_, err := For(context.Background(), e, "profile menu", func(ctx context.Context) (string, error) {
		probes.Add(1)
		return "", sessionGone
	})

	if !errors.Is(err, sessionGone) {
		t.Fatalf("err = %v, want the fatal probe error", err)
	}
	if n := probes.Load(); n != 1 {
		t.Errorf("probe ran %d times, want 1: fatal failures are not retried", n)
	}
	if len(hooks) != 1 || hooks[0].Attempts != 1 {
		t.Errorf("hooks = %+v, want one call with Attempts 1", hooks)
	}
	// A fatal business error says nothing about session health.
	if state := e.BreakerState(); state != retry.StateClosed {
		t.Errorf("breaker state = %s, want closed", state)
	}
}

func TestFor_BreakerOpensAndPersists(t *testing.T) {
	var attempts []int
	e := fastEngine(Config{
		Timeout:          2 * time.Second,
		BreakerThreshold: 1,
		OnFailure: func(fc FailureContext) {
			attempts = append(attempts, fc.Attempts)
		},
	})

	var probes atomic.Int32
	failing := func(ctx context.Context) (string, error) {
		probes.Add(1)
		return "", errNotVisible
	}

	// First wait: the probe failure opens the breaker, the next cycle
	// is rejected without probing.
	_, err := For(context.Background(), e, "first wait", failing)
	if !errors.Is(err, retry.ErrOpen) {
		t.Fatalf("first wait err = %v, want ErrOpen", err)
	}
	if n := probes.Load(); n != 1 {
		t.Errorf("probe ran %d times, want 1", n)
	}
	if state := e.BreakerState(); state != retry.StateOpen {
		t.Errorf("breaker state = %s, want open", state)
	}

	// Second wait on the same session aborts up front.
	_, err = For(context.Background(), e, "second wait", failing)
	if !errors.Is(err, retry.ErrOpen) {
		t.Fatalf("second wait err = %v, want ErrOpen", err)
	}
	if n := probes.Load(); n != 1 {
		t.Errorf("probe ran %d times across both waits, want still 1", n)
	}

	wantAttempts := []int{2, 1}
	if len(attempts) != 2 || attempts[0] != wantAttempts[0] || attempts[1] != wantAttempts[1] {
		t.Errorf("hook attempts = %v, want %v", attempts, wantAttempts)
	}
}

func TestFor_HookPanicIsContained(t *testing.T) {
	e := fastEngine(Config{
		Timeout: 20 * time.Millisecond,
		OnFailure: func(FailureContext) {
			panic("diagnostics blew up")
		},
	})

	_, err := For(context.Background(), e, "anything", func(ctx context.Context) (string, error) {
		return "", errNotVisible
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout despite the panicking hook", err)
	}
}

func TestFor_PerCallTimeout(t *testing.T) {
	e := New(Config{}) // engine default: 10 seconds

	start := time.Now()
	_, err := For(context.Background(), e, "slow element",
		func(ctx context.Context) (string, error) {
			return "", errNotVisible
		},
		WithTimeout(40*time.Millisecond),
		WithInterval(5*time.Millisecond),
	)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("wait took %v, the per-call timeout was ignored", elapsed)
	}
}

func TestFor_ContextCancel(t *testing.T) {
	var hooks []FailureContext
	e := fastEngine(Config{
		Timeout:  10 * time.Second,
		Interval: 5 * time.Second,
		OnFailure: func(fc FailureContext) {
			hooks = append(hooks, fc)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := For(ctx, e, "never appears", func(ctx context.Context) (string, error) {
		return "", errNotVisible
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancel took %v to be observed", elapsed)
	}
	if len(hooks) != 1 {
		t.Errorf("hook ran %d times, want 1", len(hooks))
	}
}
