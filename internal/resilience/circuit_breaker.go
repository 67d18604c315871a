package resilience

import (
	"sync"
	"time"
)

// CircuitState represents the observed state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Circuit is open, attempts are blocked
	StateHalfOpen                     // Cooldown elapsed, a trial attempt is permitted
)

// String returns the state name used in logs and metrics
func (s CircuitState) String() string {
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

// CircuitBreakerOptions tunes a single breaker
type CircuitBreakerOptions struct {
	FailureThreshold int           // Failures before the circuit opens
	ResetTimeout     time.Duration // Cooldown before a half-open trial is permitted
}

// DefaultCircuitBreakerOptions returns the default breaker tuning
func DefaultCircuitBreakerOptions() CircuitBreakerOptions {
	return CircuitBreakerOptions{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern with lazily computed
// state: no background timer flips open to half-open, every read re-evaluates
// the stored failure count and timestamp. A ResetTimeout of zero makes an open
// breaker immediately eligible for a half-open trial, which tests rely on to
// assert the transition without sleeping.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	mu            sync.RWMutex
	failures      int
	lastFailureAt time.Time
	requestCount  int64
	failureTotal  int64
}

// NewCircuitBreaker creates a breaker in the closed state
func NewCircuitBreaker(name string, opts CircuitBreakerOptions) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultCircuitBreakerOptions().FailureThreshold
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: opts.FailureThreshold,
		resetTimeout:     opts.ResetTimeout,
	}
}

// Name returns the provider name this breaker guards
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the computed state. Raw open plus an elapsed cooldown is
// observed as half-open; a read never mutates the stored fields.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.stateLocked(time.Now())
}

func (cb *CircuitBreaker) stateLocked(now time.Time) CircuitState {
	if cb.failures < cb.failureThreshold {
		return StateClosed
	}
	if now.Sub(cb.lastFailureAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return StateOpen
}

// CanAttempt reports whether a call may be made: true in closed or half-open
func (cb *CircuitBreaker) CanAttempt() bool {
	return cb.State() != StateOpen
}

// RecordSuccess resets the failure count and forces the breaker closed
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requestCount++
	cb.failures = 0
	cb.lastFailureAt = time.Time{}
}

// RecordFailure increments the failure count and stamps the failure time.
// A failure recorded once the threshold has already been met (a failed
// half-open trial) refreshes lastFailureAt, keeping the circuit open for
// another full cooldown window.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requestCount++
	cb.failureTotal++
	cb.failures++
	cb.lastFailureAt = time.Now()
}

// Reset forces the breaker closed and zeroes all counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.lastFailureAt = time.Time{}
	cb.requestCount = 0
	cb.failureTotal = 0
}

// Stats returns lifetime request/failure totals and the failure rate percent
func (cb *CircuitBreaker) Stats() (state CircuitState, requestCount, failureCount int64, failureRate float64) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	state = cb.stateLocked(time.Now())
	requestCount = cb.requestCount
	failureCount = cb.failureTotal

	if requestCount > 0 {
		failureRate = float64(failureCount) / float64(requestCount) * 100.0
	}

	return
}
