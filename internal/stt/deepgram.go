package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/prepflow/stt-gateway/internal/resilience"
)

// DeepgramConfig configures the Deepgram batch transcription adapter
type DeepgramConfig struct {
	APIKey   string
	Model    string // e.g. nova-2, enhanced, base
	Language string // default language when the request carries no hint

	// Retry tunes transient-error retries inside a single attempt; nil
	// uses the vendor default of two attempts
	Retry *resilience.RetryConfig
}

// deepgramAuthURL answers an authenticated GET with the key's token details.
// Cheap and non-billable, which makes it the readiness probe target.
const deepgramAuthURL = "https://api.deepgram.com/v1/auth/token"

// DeepgramProvider transcribes audio through Deepgram's pre-recorded REST
// API. Transient transport errors are retried once with backoff before the
// attempt is reported as failed to the registry's breaker.
type DeepgramProvider struct {
	cfg        DeepgramConfig
	api        *listenv1rest.Client
	retry      *resilience.RetryConfig
	httpClient *http.Client
	authURL    string
}

// NewDeepgramProvider creates the adapter. It fails fast when the API key is
// absent so misconfiguration surfaces at wiring time, not at first request.
func NewDeepgramProvider(cfg DeepgramConfig) (*DeepgramProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}

	retry := cfg.Retry
	if retry == nil {
		retry = defaultVendorRetry()
	}

	client := listenClient.NewREST(cfg.APIKey, &interfaces.ClientOptions{})

	return &DeepgramProvider{
		cfg:        cfg,
		api:        listenv1rest.New(client),
		retry:      retry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		authURL:    deepgramAuthURL,
	}, nil
}

// Name returns "deepgram"
func (p *DeepgramProvider) Name() string { return "deepgram" }

// Transcribe sends the audio buffer to Deepgram and maps the response into
// the provider-agnostic result shape. Vendor failures are returned as errors,
// never as fabricated successes.
func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	language := opts.Language
	if language == "" {
		language = p.cfg.Language
	}

	tOptions := &interfaces.PreRecordedTranscriptionOptions{
		Model:       p.cfg.Model,
		Language:    language,
		Punctuate:   true,
		SmartFormat: true,
	}

	var response *restinterfaces.PreRecordedResponse
	err := resilience.Retry(ctx, func() error {
		res, err := p.api.FromStream(ctx, bytes.NewReader(audio), tOptions)
		if err != nil {
			return err
		}
		response = res
		return nil
	}, p.retry, resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, fmt.Errorf("deepgram transcription failed: %w", err)
	}

	if response == nil || response.Results == nil ||
		len(response.Results.Channels) == 0 ||
		len(response.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram returned an empty response")
	}

	alt := response.Results.Channels[0].Alternatives[0]

	meta := map[string]string{"model": p.cfg.Model}
	if response.Metadata != nil {
		meta["request_id"] = response.Metadata.RequestID
		meta["duration"] = strconv.FormatFloat(response.Metadata.Duration, 'f', -1, 64)
	}

	// Pre-recorded results are settled by definition
	return &Result{
		Text:       alt.Transcript,
		IsFinal:    true,
		Confidence: alt.Confidence,
		Meta:       meta,
	}, nil
}

// HealthCheck probes the vendor with an authenticated token lookup, which is
// not billable. False on transport failure or a non-200 (revoked key included).
func (p *DeepgramProvider) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.authURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

var _ Provider = (*DeepgramProvider)(nil)
