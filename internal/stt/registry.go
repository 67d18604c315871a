package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepflow/stt-gateway/internal/observability"
	"github.com/prepflow/stt-gateway/internal/resilience"
)

// ErrCircuitOpen is the sentinel recorded in the aggregated failure list when
// a provider was skipped because its circuit was open. It distinguishes "we
// didn't even try" from "we tried and it failed".
var ErrCircuitOpen = errors.New("circuit_open")

// ProviderError pairs a provider name with the error (or skip sentinel) it
// contributed to an exhausted transcription attempt
type ProviderError struct {
	Provider string
	Err      error
}

// AllProvidersFailedError is returned when every registration in the chain
// was either skipped due to an open circuit or failed. It is the only error
// type the registry itself produces.
type AllProvidersFailedError struct {
	ProviderErrors []ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.ProviderErrors))
	for _, pe := range e.ProviderErrors {
		parts = append(parts, fmt.Sprintf("%s: %v", pe.Provider, pe.Err))
	}
	return "all stt providers failed: " + strings.Join(parts, "; ")
}

type registration struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
}

// RegistryOptions tunes a provider registry
type RegistryOptions struct {
	// AttemptTimeout bounds each individual provider call. Zero disables
	// the per-attempt deadline (the parent context still applies).
	AttemptTimeout time.Duration

	Logger zerolog.Logger
}

// Registry is the single entry point for transcription. It owns an ordered
// fallback chain of (provider, circuit breaker) pairs: registration order is
// attempt order, first success wins, and providers are never raced in
// parallel since vendors bill per call.
type Registry struct {
	mu             sync.RWMutex
	entries        []registration
	attemptTimeout time.Duration
	logger         zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		attemptTimeout: opts.AttemptTimeout,
		logger:         opts.Logger,
	}
}

// Register appends a provider to the fallback chain with its own breaker.
// The chain is never reordered after registration.
func (r *Registry) Register(p Provider, opts resilience.CircuitBreakerOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, registration{
		provider: p,
		breaker:  resilience.NewCircuitBreaker(p.Name(), opts),
	})
}

// RegisteredProviders returns provider names in registration order
func (r *Registry) RegisteredProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.provider.Name())
	}
	return names
}

// CircuitState returns the computed circuit state for a registered provider.
// The second return value is false if the provider is not registered.
func (r *Registry) CircuitState(name string) (resilience.CircuitState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.provider.Name() == name {
			return e.breaker.State(), true
		}
	}
	return 0, false
}

// Provider returns a registered provider by name, for out-of-band health
// probing. The second return value is false if the name is not registered.
func (r *Registry) Provider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.provider.Name() == name {
			return e.provider, true
		}
	}
	return nil, false
}

// ResetCircuit forces a registered provider's breaker closed. Used for
// manual recovery; reports whether the provider was found.
func (r *Registry) ResetCircuit(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.provider.Name() == name {
			e.breaker.Reset()
			observability.UpdateCircuitBreakerState(name, int(e.breaker.State()))
			return true
		}
	}
	return false
}

// Transcribe walks the fallback chain in registration order. Providers with
// an open circuit are skipped without being invoked; a failing provider has
// the failure recorded against its breaker and the next registration is
// tried. The first success is returned immediately with the serving
// provider's name attached.
func (r *Registry) Transcribe(ctx context.Context, audio []byte, opts Options) (*Transcription, error) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	var providerErrors []ProviderError

	for i, e := range entries {
		name := e.provider.Name()

		if !e.breaker.CanAttempt() {
			r.logger.Debug().Str("provider", name).Msg("Skipping provider with open circuit")
			observability.RecordProviderSkip(name)
			providerErrors = append(providerErrors, ProviderError{Provider: name, Err: ErrCircuitOpen})
			continue
		}

		result, err := r.attempt(ctx, e.provider, audio, opts)
		if err != nil {
			e.breaker.RecordFailure()
			observability.UpdateCircuitBreakerState(name, int(e.breaker.State()))
			observability.IncrementCircuitBreakerFailures(name)
			r.logger.Warn().Err(err).Str("provider", name).Msg("Provider attempt failed, trying next in chain")
			providerErrors = append(providerErrors, ProviderError{Provider: name, Err: err})
			continue
		}

		e.breaker.RecordSuccess()
		observability.UpdateCircuitBreakerState(name, int(e.breaker.State()))
		observability.RecordFallbackDepth(i)

		return &Transcription{Result: *result, Provider: name}, nil
	}

	return nil, &AllProvidersFailedError{ProviderErrors: providerErrors}
}

// attempt invokes a single provider under the per-attempt deadline. A timed
// out call counts as a plain failure and advances the chain.
func (r *Registry) attempt(ctx context.Context, p Provider, audio []byte, opts Options) (*Result, error) {
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.Transcribe(ctx, audio, opts)
	observability.RecordProviderAttempt(p.Name(), time.Since(start), err == nil)

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("provider %s returned no result", p.Name())
	}
	return result, nil
}
