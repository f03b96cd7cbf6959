package llm

import (
	"sync"
	"time"
)

// State is a circuit breaker's current position in the closed/open/half-open
// cycle.
type State int

const (
	// StateClosed is normal operation - requests pass through.
	StateClosed State = iota
	// StateOpen means the breaker is tripped - requests are rejected.
	StateOpen
	// StateHalfOpen lets requests through until the next recorded outcome
	// closes or re-opens the breaker.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops Bridge from re-spawning a provider CLI that just
// failed: Run consults Allow before each spawn and records the outcome
// back in. Three consecutive failures opens the breaker for the recovery
// window, after which it turns half-open and lets requests through again
// until the next recorded outcome.
type CircuitBreaker struct {
	name             string
	state            State
	failures         int
	lastFailure      time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	mu               sync.Mutex

	// now is a function that returns current time, injectable for testing.
	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with default settings.
// Default threshold is 3 consecutive failures, recovery timeout is 60 seconds.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 3,
		recoveryTimeout:  60 * time.Second,
		now:              time.Now,
	}
}

// Name returns the provider name this breaker tracks.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether Bridge may spawn this provider. An open
// breaker rejects until the recovery timeout elapses, at which point it
// moves to half-open. A half-open breaker allows every request until
// RecordSuccess closes it or RecordFailure re-opens it.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.recoveryTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure increments the failure count and opens the breaker once
// failureThreshold consecutive failures have been recorded.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	if cb.failures >= cb.failureThreshold && cb.state != StateOpen {
		cb.state = StateOpen
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
