package resilience

import (
	"testing"
	"time"
)

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: time.Second})

	if cb.State() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %s", cb.State())
	}

	if !cb.CanAttempt() {
		t.Error("Expected to allow attempt in Closed state")
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: time.Second})

	// Record failures below the threshold
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	// Third failure should open circuit
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}

	if cb.CanAttempt() {
		t.Error("Expected to not allow attempt in Open state")
	}
}

func TestCircuitBreaker_HalfOpenWithZeroTimeout(t *testing.T) {
	// ResetTimeout of zero means immediately eligible for a trial, so the
	// transition is observable without sleeping.
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 2, ResetTimeout: 0})

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateHalfOpen {
		t.Errorf("Expected state HalfOpen with zero reset timeout, got %s", cb.State())
	}
	if !cb.CanAttempt() {
		t.Error("Expected to allow a trial attempt in HalfOpen state")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: 50 * time.Millisecond})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	time.Sleep(75 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("Expected state HalfOpen after timeout, got %s", cb.State())
	}
	if !cb.CanAttempt() {
		t.Error("Expected to allow attempt after timeout (HalfOpen)")
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: 0})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()

	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Error("Expected state to be Closed after success")
	}

	// With threshold 3, a single new failure must not reopen
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Error("Expected single failure after reset to leave breaker Closed")
	}
}

func TestCircuitBreaker_FailedTrialKeepsOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 2, ResetTimeout: time.Minute})

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	// A failure past the threshold refreshes the cooldown window
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Error("Expected failed trial to keep circuit Open")
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: time.Second})

	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordFailure()

	state, requestCount, failureCount, failureRate := cb.Stats()

	if state != StateClosed {
		t.Errorf("Expected state Closed, got %s", state)
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
	if failureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failureCount)
	}
	if failureRate < 33.0 || failureRate > 34.0 {
		t.Errorf("Expected failure rate around 33.33%%, got %.2f%%", failureRate)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: time.Second})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Error("Expected state to be Closed after reset")
	}

	state, requestCount, failureCount, _ := cb.Stats()
	if state != StateClosed || requestCount != 0 || failureCount != 0 {
		t.Error("Expected stats to be reset")
	}
}
