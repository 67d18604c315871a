package stt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepflow/stt-gateway/internal/resilience"
	"github.com/prepflow/stt-gateway/internal/stt"
	"github.com/prepflow/stt-gateway/internal/stt/sttmock"
)

func newTestRegistry() *stt.Registry {
	return stt.NewRegistry(stt.RegistryOptions{Logger: zerolog.Nop()})
}

func defaultBreaker() resilience.CircuitBreakerOptions {
	return resilience.CircuitBreakerOptions{FailureThreshold: 3, ResetTimeout: time.Minute}
}

func TestRegistry_FallbackOrdering(t *testing.T) {
	log := &sttmock.CallLog{}
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "a", Log: log}, defaultBreaker())
	registry.Register(&sttmock.ScriptedProvider{
		ProviderName: "b",
		Result:       stt.Result{Text: "hello", IsFinal: true, Confidence: 0.9},
		Log:          log,
	}, defaultBreaker())
	registry.Register(&sttmock.ScriptedProvider{ProviderName: "c", Log: log}, defaultBreaker())

	result, err := registry.Transcribe(context.Background(), []byte("audio"), stt.Options{})
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}

	if result.Provider != "b" {
		t.Errorf("Expected provider 'b', got '%s'", result.Provider)
	}
	if result.Text != "hello" {
		t.Errorf("Expected text 'hello', got '%s'", result.Text)
	}

	// First success wins: c must never be invoked
	calls := log.Calls()
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("Expected call order [a b], got %v", calls)
	}
}

func TestRegistry_CircuitSkipAvoidsReinvocation(t *testing.T) {
	log := &sttmock.CallLog{}
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "a", Log: log},
		resilience.CircuitBreakerOptions{FailureThreshold: 1, ResetTimeout: time.Minute})
	registry.Register(&sttmock.ScriptedProvider{
		ProviderName: "b",
		Result:       stt.Result{Text: "ok", IsFinal: true},
		Log:          log,
	}, defaultBreaker())

	// First call fails through a, opening its circuit
	if _, err := registry.Transcribe(context.Background(), nil, stt.Options{}); err != nil {
		t.Fatalf("First Transcribe() failed: %v", err)
	}

	if state, ok := registry.CircuitState("a"); !ok || state != resilience.StateOpen {
		t.Fatalf("Expected a's circuit to be open, got %v (registered=%v)", state, ok)
	}

	// Second call must not invoke a at all
	result, err := registry.Transcribe(context.Background(), nil, stt.Options{})
	if err != nil {
		t.Fatalf("Second Transcribe() failed: %v", err)
	}
	if result.Provider != "b" {
		t.Errorf("Expected provider 'b', got '%s'", result.Provider)
	}

	calls := log.Calls()
	want := []string{"a", "b", "b"}
	if len(calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("Expected calls %v, got %v", want, calls)
		}
	}
}

func TestRegistry_TotalExhaustion(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "a"}, defaultBreaker())
	registry.Register(&sttmock.FailingProvider{ProviderName: "b"}, defaultBreaker())

	_, err := registry.Transcribe(context.Background(), nil, stt.Options{})
	if err == nil {
		t.Fatal("Expected error when all providers fail")
	}

	var allFailed *stt.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("Expected AllProvidersFailedError, got %T", err)
	}

	if len(allFailed.ProviderErrors) != 2 {
		t.Fatalf("Expected 2 provider errors, got %d", len(allFailed.ProviderErrors))
	}
	if allFailed.ProviderErrors[0].Provider != "a" || allFailed.ProviderErrors[1].Provider != "b" {
		t.Errorf("Expected provider errors for [a b], got %+v", allFailed.ProviderErrors)
	}
	if !errors.Is(allFailed.ProviderErrors[0].Err, sttmock.ErrAlwaysFails) {
		t.Errorf("Expected the named failure error, got %v", allFailed.ProviderErrors[0].Err)
	}
}

func TestRegistry_ExhaustionRecordsCircuitOpenSentinel(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "a"},
		resilience.CircuitBreakerOptions{FailureThreshold: 1, ResetTimeout: time.Minute})

	// Open a's circuit
	if _, err := registry.Transcribe(context.Background(), nil, stt.Options{}); err == nil {
		t.Fatal("Expected first call to fail")
	}

	_, err := registry.Transcribe(context.Background(), nil, stt.Options{})
	var allFailed *stt.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("Expected AllProvidersFailedError, got %v", err)
	}
	if len(allFailed.ProviderErrors) != 1 {
		t.Fatalf("Expected 1 provider error, got %d", len(allFailed.ProviderErrors))
	}
	if !errors.Is(allFailed.ProviderErrors[0].Err, stt.ErrCircuitOpen) {
		t.Errorf("Expected circuit_open sentinel, got %v", allFailed.ProviderErrors[0].Err)
	}
}

func TestRegistry_SuccessClosesCircuitAgain(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(&sttmock.ScriptedProvider{ProviderName: "a", Result: stt.Result{IsFinal: true}},
		resilience.CircuitBreakerOptions{FailureThreshold: 2, ResetTimeout: 0})

	for i := 0; i < 3; i++ {
		if _, err := registry.Transcribe(context.Background(), nil, stt.Options{}); err != nil {
			t.Fatalf("Transcribe() %d failed: %v", i, err)
		}
	}

	if state, _ := registry.CircuitState("a"); state != resilience.StateClosed {
		t.Errorf("Expected closed circuit after successes, got %s", state)
	}
}

func TestRegistry_NullTailDegradesGracefully(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "deepgram"}, defaultBreaker())
	registry.Register(stt.NewNullProvider(), defaultBreaker())

	result, err := registry.Transcribe(context.Background(), []byte("audio"), stt.Options{})
	if err != nil {
		t.Fatalf("Transcribe() failed despite null tail: %v", err)
	}

	if result.Provider != "null" {
		t.Errorf("Expected provider 'null', got '%s'", result.Provider)
	}
	if result.Text != "" || !result.IsFinal || result.Confidence != 0 {
		t.Errorf("Expected final empty-text result with zero confidence, got %+v", result.Result)
	}
}

func TestRegistry_RegisteredProviders(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "a"}, defaultBreaker())
	registry.Register(&sttmock.ScriptedProvider{ProviderName: "b"}, defaultBreaker())
	registry.Register(stt.NewNullProvider(), defaultBreaker())

	names := registry.RegisteredProviders()
	want := []string{"a", "b", "null"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, names)
		}
	}
}

func TestRegistry_CircuitStateUnknownProvider(t *testing.T) {
	registry := newTestRegistry()

	if _, ok := registry.CircuitState("nope"); ok {
		t.Error("Expected CircuitState to report unknown provider")
	}
}

func TestRegistry_ResetCircuit(t *testing.T) {
	registry := newTestRegistry()
	registry.Register(&sttmock.FailingProvider{ProviderName: "a"},
		resilience.CircuitBreakerOptions{FailureThreshold: 1, ResetTimeout: time.Minute})

	_, _ = registry.Transcribe(context.Background(), nil, stt.Options{})
	if state, _ := registry.CircuitState("a"); state != resilience.StateOpen {
		t.Fatal("Expected open circuit")
	}

	if !registry.ResetCircuit("a") {
		t.Fatal("Expected ResetCircuit to find the provider")
	}
	if state, _ := registry.CircuitState("a"); state != resilience.StateClosed {
		t.Errorf("Expected closed circuit after reset, got %s", state)
	}

	if registry.ResetCircuit("nope") {
		t.Error("Expected ResetCircuit to report unknown provider")
	}
}

// slowProvider blocks until its context is cancelled
type slowProvider struct{ name string }

func (p *slowProvider) Name() string { return p.name }

func (p *slowProvider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (*stt.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *slowProvider) HealthCheck(ctx context.Context) bool { return true }

func TestRegistry_AttemptTimeoutCountsAsFailure(t *testing.T) {
	registry := stt.NewRegistry(stt.RegistryOptions{
		AttemptTimeout: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	registry.Register(&slowProvider{name: "hung"}, defaultBreaker())
	registry.Register(&sttmock.ScriptedProvider{
		ProviderName: "b",
		Result:       stt.Result{Text: "rescued", IsFinal: true},
	}, defaultBreaker())

	result, err := registry.Transcribe(context.Background(), nil, stt.Options{})
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	if result.Provider != "b" {
		t.Errorf("Expected fallback to 'b' after timeout, got '%s'", result.Provider)
	}
}
