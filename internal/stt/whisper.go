package stt

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/prepflow/stt-gateway/internal/resilience"
)

// WhisperConfig configures the OpenAI Whisper batch transcription adapter
type WhisperConfig struct {
	APIKey string
	Model  string // defaults to whisper-1

	// Retry tunes transient-error retries inside a single attempt; nil
	// uses the vendor default of two attempts
	Retry *resilience.RetryConfig
}

// WhisperProvider transcribes audio through OpenAI's audio transcription
// endpoint. It is the batch-vendor leg of the fallback chain behind the
// streaming-first Deepgram adapter.
type WhisperProvider struct {
	cfg    WhisperConfig
	client *openai.Client
	retry  *resilience.RetryConfig
}

// NewWhisperProvider creates the adapter, failing fast on a missing key
func NewWhisperProvider(cfg WhisperConfig) (*WhisperProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("whisper: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	retry := cfg.Retry
	if retry == nil {
		retry = defaultVendorRetry()
	}

	return &WhisperProvider{
		cfg:    cfg,
		client: openai.NewClient(cfg.APIKey),
		retry:  retry,
	}, nil
}

// Name returns "whisper"
func (p *WhisperProvider) Name() string { return "whisper" }

// Transcribe sends the audio buffer to the Whisper API. Whisper does not
// report a confidence score, so the result carries zero confidence.
func (p *WhisperProvider) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	req := openai.AudioRequest{
		Model: p.cfg.Model,
		// The API infers the container format from the filename extension
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio),
		Language: opts.Language,
	}

	var response openai.AudioResponse
	err := resilience.Retry(ctx, func() error {
		res, err := p.client.CreateTranscription(ctx, req)
		if err != nil {
			return err
		}
		response = res
		return nil
	}, p.retry, resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	return &Result{
		Text:    response.Text,
		IsFinal: true,
		Meta:    map[string]string{"model": p.cfg.Model},
	}, nil
}

// HealthCheck probes the API with a model listing call and reports false on
// any failure
func (p *WhisperProvider) HealthCheck(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	_, err := p.client.ListModels(ctx)
	return err == nil
}

var _ Provider = (*WhisperProvider)(nil)
