package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcription gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Deepgram STT API configuration. An empty key means the Deepgram
	// adapter is simply not registered.
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Default language code

	// OpenAI Whisper API configuration. Same skip-on-absence semantics.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" default:""`
	WhisperModel string `envconfig:"WHISPER_MODEL" default:"whisper-1"`

	// Suggestion copilot gRPC endpoint (readiness probing only)
	CopilotURL        string `envconfig:"COPILOT_URL" default:""`
	CopilotTLSEnabled bool   `envconfig:"COPILOT_TLS_ENABLED" default:"false"`
	CopilotTimeout    int    `envconfig:"COPILOT_TIMEOUT" default:"10"` // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"3"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before a half-open trial
	ProviderAttemptTimeout     int `envconfig:"PROVIDER_ATTEMPT_TIMEOUT" default:"30"`      // Seconds per provider call
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"2"`             // Attempts per vendor call for transient errors
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Request limits
	MaxAudioBytes int64 `envconfig:"MAX_AUDIO_BYTES" default:"10485760"` // 10 MiB cap per request

	// Tier-based rate limiting (requests per minute per user/org key)
	FreeTierRequestsPerMinute int `envconfig:"FREE_TIER_REQUESTS_PER_MINUTE" default:"10"`
	ProTierRequestsPerMinute  int `envconfig:"PRO_TIER_REQUESTS_PER_MINUTE" default:"60"`
	TeamTierRequestsPerMinute int `envconfig:"TEAM_TIER_REQUESTS_PER_MINUTE" default:"120"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists.
func Load() (*Config, error) {
	// Ignore error if the .env file doesn't exist
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load a .env file (useful for containerized
// deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks cross-field constraints. Vendor keys are deliberately not
// required: an absent key skips that adapter at wiring time with a warning,
// and the null provider keeps the chain non-empty.
func (c *Config) validate() error {
	if c.CircuitBreakerMaxFailures <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_MAX_FAILURES must be positive, got %d", c.CircuitBreakerMaxFailures)
	}
	if c.CircuitBreakerResetTimeout < 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_RESET_TIMEOUT must not be negative, got %d", c.CircuitBreakerResetTimeout)
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be positive, got %d", c.MaxAudioBytes)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
