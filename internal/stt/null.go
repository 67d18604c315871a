package stt

import "context"

// NullProvider is the guaranteed-available tail of a fallback chain. It
// returns an immediate final empty-text result so the gateway degrades to
// "no transcript" instead of surfacing an error when every real vendor is
// down. Registered with an effectively infinite failure threshold so it can
// never circuit-open.
type NullProvider struct{}

// NewNullProvider creates the terminal fallback provider
func NewNullProvider() *NullProvider {
	return &NullProvider{}
}

// Name returns "null"
func (p *NullProvider) Name() string { return "null" }

// Transcribe returns a final empty-text result with confidence 0
func (p *NullProvider) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	return &Result{
		Text:       "",
		IsFinal:    true,
		Confidence: 0,
	}, nil
}

// HealthCheck always reports healthy
func (p *NullProvider) HealthCheck(ctx context.Context) bool { return true }

var _ Provider = (*NullProvider)(nil)
