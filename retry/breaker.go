package retry

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// DefaultBreakerThreshold is the number of consecutive counted
	// failures that trips a breaker built with a zero threshold.
	DefaultBreakerThreshold = 5
	// DefaultBreakerCooldown is how long a tripped breaker stays open
	// before admitting a probe, when no cooldown is configured.
	DefaultBreakerCooldown = 30 * time.Second
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker's position in its state machine.
type State int

const (
	// StateClosed lets calls through and counts failures.
	StateClosed State = iota
	// StateHalfOpen admits a single probe call after the cooldown.
	StateHalfOpen
	// StateOpen rejects calls immediately.
	StateOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateFromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Name identifies the breaker in state-change notifications.
	Name string
	// Threshold is the number of consecutive counted failures that
	// trips the breaker open. Zero uses DefaultBreakerThreshold.
	Threshold uint32
	// Cooldown is how long the breaker stays open before admitting a
	// single half-open probe. Zero uses DefaultBreakerCooldown.
	Cooldown time.Duration
	// OnStateChange, when non-nil, is invoked on every state transition.
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker. While closed it
// counts failures; at the threshold it opens and rejects calls with
// ErrOpen. After the cooldown it admits exactly one probe: success
// closes the circuit, failure re-opens it.
//
// Failures the caller marks as non-tripping (see Execute) pass through
// without counting toward the threshold, so terminal business errors do
// not poison the circuit's view of service health.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// noTripError carries a failure through the breaker without counting it.
type noTripError struct {
	err error
}

func (e *noTripError) Error() string { return e.err.Error() }

func (e *noTripError) Unwrap() error { return e.err }

// NewBreaker creates a circuit breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultBreakerThreshold
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var nt *noTripError
			return errors.As(err, &nt)
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, stateFromGobreaker(from), stateFromGobreaker(to))
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return stateFromGobreaker(b.cb.State())
}

// Execute runs op through the breaker. An open breaker rejects the call
// with ErrOpen without invoking op. shouldTrip decides whether a failure
// counts toward tripping; when it reports false the error is passed back
// unchanged and does not count. A nil shouldTrip counts every failure.
func (b *Breaker) Execute(shouldTrip func(error) bool, op func() (interface{}, error)) (interface{}, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		v, opErr := op()
		if opErr != nil && shouldTrip != nil && !shouldTrip(opErr) {
			return v, &noTripError{err: opErr}
		}
		return v, opErr
	})
	if err != nil {
		var nt *noTripError
		if errors.As(err, &nt) {
			return out, nt.err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return out, ErrOpen
		}
	}
	return out, err
}
