// Package circuitbreaker fails calls to a struggling dependency fast instead
// of letting every request wait on it.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrOpen is returned by Execute while the breaker is rejecting calls
var ErrOpen = errors.New("circuit breaker is open")

// Settings configures a breaker. Zero thresholds default to 1.
type Settings struct {
	Name string
	// FailureThreshold consecutive failures open the breaker
	FailureThreshold int
	// SuccessThreshold half-open probes must pass to close it again
	SuccessThreshold int
	// OpenTimeout is how long the breaker rejects calls before probing
	OpenTimeout time.Duration
	// IsFailure decides which errors count against the dependency. Nil
	// counts every error. Caller cancellation never counts, whatever
	// IsFailure says.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker tracks consecutive failures of one dependency. In half-open
// state only one probe runs at a time; concurrent callers get ErrOpen.
type CircuitBreaker struct {
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// New creates a closed breaker
func New(settings Settings) *CircuitBreaker {
	if settings.FailureThreshold < 1 {
		settings.FailureThreshold = 1
	}
	if settings.SuccessThreshold < 1 {
		settings.SuccessThreshold = 1
	}
	return &CircuitBreaker{settings: settings, now: time.Now}
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return cb.settings.IsFailure == nil || cb.settings.IsFailure(err)
}

// State returns the current state, moving an expired open breaker to half-open
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireLocked()
	return cb.state
}

// Execute runs fn when the breaker allows it and records the outcome.
// Errors that IsFailure rejects are returned but leave the counters alone.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expireLocked()
	switch cb.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == StateHalfOpen
	cb.probing = false

	if cb.isFailure(err) {
		cb.successes = 0
		if wasProbe {
			cb.openLocked()
			return
		}
		cb.failures++
		if cb.failures >= cb.settings.FailureThreshold {
			cb.openLocked()
		}
		return
	}

	if !wasProbe {
		cb.failures = 0
		return
	}
	if err != nil {
		// ignored errors say nothing about recovery
		return
	}
	cb.successes++
	if cb.successes >= cb.settings.SuccessThreshold {
		cb.failures, cb.successes = 0, 0
		cb.transitionLocked(StateClosed)
	}
}

func (cb *CircuitBreaker) expireLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.settings.OpenTimeout {
		cb.successes = 0
		cb.transitionLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) openLocked() {
	cb.failures, cb.successes = 0, 0
	cb.openedAt = cb.now()
	cb.transitionLocked(StateOpen)
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
