package stt

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepflow/stt-gateway/internal/config"
	"github.com/prepflow/stt-gateway/internal/resilience"
)

// defaultVendorRetry is the adapter retry tuning used when no explicit
// config is supplied: one transient-error retry before the attempt is
// surfaced to the breaker.
func defaultVendorRetry() *resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	return retry
}

// NewRegistryFromConfig wires the provider chain from environment-driven
// configuration. Vendors whose API key is absent are skipped with a warning,
// never registered-then-always-failing. The null provider is always
// registered last with an effectively infinite failure threshold so the
// chain has a terminal fallback that cannot circuit-open.
func NewRegistryFromConfig(cfg *config.Config, logger zerolog.Logger) *Registry {
	registry := NewRegistry(RegistryOptions{
		AttemptTimeout: time.Duration(cfg.ProviderAttemptTimeout) * time.Second,
		Logger:         logger,
	})

	breakerOpts := resilience.CircuitBreakerOptions{
		FailureThreshold: cfg.CircuitBreakerMaxFailures,
		ResetTimeout:     time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
	}

	retry := defaultVendorRetry()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	}

	if cfg.DeepgramAPIKey != "" {
		provider, err := NewDeepgramProvider(DeepgramConfig{
			APIKey:   cfg.DeepgramAPIKey,
			Model:    cfg.DeepgramModel,
			Language: cfg.DeepgramLanguage,
			Retry:    retry,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Deepgram provider")
		} else {
			registry.Register(provider, breakerOpts)
			logger.Info().Str("model", cfg.DeepgramModel).Msg("Registered Deepgram provider")
		}
	} else {
		logger.Warn().Msg("DEEPGRAM_API_KEY not set, skipping Deepgram provider")
	}

	if cfg.OpenAIAPIKey != "" {
		provider, err := NewWhisperProvider(WhisperConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.WhisperModel,
			Retry:  retry,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Whisper provider")
		} else {
			registry.Register(provider, breakerOpts)
			logger.Info().Str("model", cfg.WhisperModel).Msg("Registered Whisper provider")
		}
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, skipping Whisper provider")
	}

	registry.Register(NewNullProvider(), resilience.CircuitBreakerOptions{
		FailureThreshold: math.MaxInt32,
		ResetTimeout:     0,
	})

	logger.Info().Strs("providers", registry.RegisteredProviders()).Msg("Provider chain assembled")
	return registry
}
