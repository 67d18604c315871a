// Package transcript converts provider results into the durable, idempotent
// chunk representation consumed by persistence and real-time broadcast.
package transcript

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prepflow/stt-gateway/internal/stt"
)

// ChunkState describes a chunk's lifecycle position
type ChunkState string

const (
	// StatePartial marks an in-progress result still subject to revision
	StatePartial ChunkState = "partial"
	// StateFinal marks a settled result for one utterance
	StateFinal ChunkState = "final"
	// StateError marks a caller-synthesized chunk representing provider
	// failure; the builder never produces it from a successful result
	StateError ChunkState = "error"
)

// Chunk is the canonical transcript unit. Its idempotency key is
// deterministic for a given (session, provider, seq) triple, so retried
// submissions deduplicate safely upstream (insert-or-ignore on key
// collision).
type Chunk struct {
	IdempotencyKey string     `json:"idempotency_key"`
	Seq            int64      `json:"seq"`
	State          ChunkState `json:"state"`
	Text           string     `json:"text"`
	Provider       string     `json:"provider"`
	ReceivedAt     time.Time  `json:"received_at"`
	Confidence     float64    `json:"confidence,omitempty"`
}

// Key derives the idempotency key for a (session, provider, seq) triple.
// No randomness and no clock dependency: the same triple always yields the
// same key.
func Key(sessionID, provider string, seq int64) string {
	return fmt.Sprintf("%s:%s:%d", sessionID, provider, seq)
}

// Builder sequences chunks with its own monotonic counter. The counter is
// owned by the builder instance rather than being a package global, so tests
// construct a fresh builder (or call ResetSeq) instead of reaching into
// hidden shared state. Sequence numbers only need uniqueness within a
// (session, provider) pair; a single counter across sessions trivially
// over-delivers on that.
type Builder struct {
	seq atomic.Int64
}

// NewBuilder creates a builder whose first chunk gets seq 1
func NewBuilder() *Builder {
	return &Builder{}
}

// Build wraps a successful transcription into a chunk, allocating the next
// sequence number
func (b *Builder) Build(sessionID string, tr *stt.Transcription) Chunk {
	return b.build(sessionID, tr, b.seq.Add(1))
}

// BuildWithSeq wraps a successful transcription using a caller-supplied
// sequence number. Used for deterministic tests and for clients resubmitting
// an interim chunk after a network blip: the same seq yields the same key.
func (b *Builder) BuildWithSeq(sessionID string, tr *stt.Transcription, seq int64) Chunk {
	return b.build(sessionID, tr, seq)
}

func (b *Builder) build(sessionID string, tr *stt.Transcription, seq int64) Chunk {
	state := StatePartial
	if tr.IsFinal {
		state = StateFinal
	}

	return Chunk{
		IdempotencyKey: Key(sessionID, tr.Provider, seq),
		Seq:            seq,
		State:          state,
		Text:           tr.Text,
		Provider:       tr.Provider,
		ReceivedAt:     time.Now().UTC(),
		Confidence:     tr.Confidence,
	}
}

// ErrorChunk synthesizes an error-state chunk for a failed transcription
// attempt. The builder's Build path never emits error state; callers invoke
// this explicitly when the whole provider chain is exhausted.
func (b *Builder) ErrorChunk(sessionID, provider, message string) Chunk {
	seq := b.seq.Add(1)
	return Chunk{
		IdempotencyKey: Key(sessionID, provider, seq),
		Seq:            seq,
		State:          StateError,
		Text:           message,
		Provider:       provider,
		ReceivedAt:     time.Now().UTC(),
	}
}

// ResetSeq zeroes the sequence counter. Test and manual-recovery use only.
func (b *Builder) ResetSeq() {
	b.seq.Store(0)
}
