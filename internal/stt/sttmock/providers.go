// Package sttmock provides deterministic provider doubles for exercising
// fallback and circuit-opening behavior without network access.
package sttmock

import (
	"context"
	"errors"
	"sync"

	"github.com/prepflow/stt-gateway/internal/stt"
)

// ErrAlwaysFails is the named error every FailingProvider call returns
var ErrAlwaysFails = errors.New("provider deliberately failing")

// CallLog records provider invocations in order so tests can assert which
// providers were actually invoked and in what sequence
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a provider name to the log
func (l *CallLog) Record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

// Calls returns a copy of the recorded invocation order
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// FailingProvider always fails: Transcribe returns a named error and
// HealthCheck reports unhealthy
type FailingProvider struct {
	ProviderName string
	Err          error    // defaults to ErrAlwaysFails
	Log          *CallLog // optional invocation log
}

func (p *FailingProvider) Name() string { return p.ProviderName }

func (p *FailingProvider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (*stt.Result, error) {
	if p.Log != nil {
		p.Log.Record(p.ProviderName)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return nil, ErrAlwaysFails
}

func (p *FailingProvider) HealthCheck(ctx context.Context) bool { return false }

// ScriptedProvider returns a fixed result on every call
type ScriptedProvider struct {
	ProviderName string
	Result       stt.Result
	Log          *CallLog // optional invocation log
}

func (p *ScriptedProvider) Name() string { return p.ProviderName }

func (p *ScriptedProvider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (*stt.Result, error) {
	if p.Log != nil {
		p.Log.Record(p.ProviderName)
	}
	result := p.Result
	return &result, nil
}

func (p *ScriptedProvider) HealthCheck(ctx context.Context) bool { return true }

var (
	_ stt.Provider = (*FailingProvider)(nil)
	_ stt.Provider = (*ScriptedProvider)(nil)
)
