package stt

import "context"

// Result represents a single transcription result from one provider call.
// It is ephemeral: the caller wraps it into a transcript chunk immediately.
type Result struct {
	// Text is the transcribed text, possibly empty
	Text string

	// IsFinal indicates whether this utterance will be refined further.
	// Batch providers always return final results.
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0); zero when the
	// vendor does not report one
	Confidence float64

	// Meta holds opaque vendor-specific diagnostics (request ids, models)
	Meta map[string]string
}

// Transcription is a Result annotated with the provider that served it
type Transcription struct {
	Result

	// Provider is the registered name of the provider that succeeded
	Provider string
}

// Options carries per-request hints for a provider call
type Options struct {
	// Language is an optional locale hint (e.g. "en-US"); empty lets the
	// provider use its own default
	Language string
}

// Provider is the capability contract for a speech-to-text vendor integration.
//
// Transcribe must return an error on any vendor failure rather than a
// degraded fabricated result; the registry treats any error as a total
// failure of that attempt. HealthCheck is a best-effort liveness probe and
// must never panic or error — implementations catch everything internally
// and report false.
type Provider interface {
	// Name returns the stable provider name used for registration,
	// idempotency keys and metrics labels
	Name() string

	// Transcribe converts raw audio bytes into a transcription result
	Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error)

	// HealthCheck reports whether the vendor looks reachable
	HealthCheck(ctx context.Context) bool
}
