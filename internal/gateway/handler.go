// Package gateway exposes the transcription core over HTTP: one ingestion
// endpoint running guard, provider chain and chunk building, plus a
// WebSocket stream of chunks per session.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/prepflow/stt-gateway/internal/audio"
	"github.com/prepflow/stt-gateway/internal/config"
	"github.com/prepflow/stt-gateway/internal/guard"
	"github.com/prepflow/stt-gateway/internal/observability"
	"github.com/prepflow/stt-gateway/internal/stt"
	"github.com/prepflow/stt-gateway/internal/transcript"
)

// Handler wires the transcription pipeline behind the HTTP surface
type Handler struct {
	cfg      *config.Config
	registry *stt.Registry
	builder  *transcript.Builder
	guard    *guard.Guard
	hub      *Hub
	logger   zerolog.Logger
}

// NewHandler assembles the gateway handler
func NewHandler(cfg *config.Config, registry *stt.Registry, builder *transcript.Builder, g *guard.Guard, hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		builder:  builder,
		guard:    g,
		hub:      hub,
		logger:   logger,
	}
}

// Routes registers the gateway endpoints on the mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/transcribe", h.handleTranscribe)
	mux.HandleFunc("GET /v1/sessions/{id}/stream", h.hub.HandleStream)
	mux.HandleFunc("GET /v1/providers", h.handleProviders)
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleTranscribe accepts raw audio in the request body plus identity
// headers resolved by the upstream API gateway, runs the guard and the
// provider chain, and returns the built chunk.
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	logger := observability.WithRequestID(requestID)

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		observability.RecordRequest("invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	auth := guard.AuthContext{
		UserID: r.Header.Get("X-User-ID"),
		OrgID:  r.Header.Get("X-Org-ID"),
		Tier:   guard.Tier(r.Header.Get("X-Tier")),
	}

	if err := h.guard.Check(auth); err != nil {
		var gerr *guard.Error
		if errors.As(err, &gerr) {
			observability.RecordRequest("rejected")
			observability.RecordGuardRejection(gerr.Code)
			if gerr.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(gerr.RetryAfter.Seconds())))
			}
			writeJSON(w, gerr.Status, errorResponse{Error: gerr.Message})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxAudioBytes+1))
	if err != nil {
		observability.RecordRequest("invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read audio payload"})
		return
	}

	if err := audio.ValidatePayload(body, h.cfg.MaxAudioBytes); err != nil {
		observability.RecordRequest("invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	observability.RecordAudioBytes(int64(len(body)))

	opts := stt.Options{Language: r.URL.Query().Get("language")}

	logger.Debug().
		Str("session_id", sessionID).
		Int("audio_bytes", len(body)).
		Str("container", string(audio.Sniff(body))).
		Msg("Transcription request accepted")

	result, err := h.registry.Transcribe(r.Context(), body, opts)
	if err != nil {
		h.handleExhaustion(w, logger, sessionID, err)
		return
	}

	chunk := h.buildChunk(r, sessionID, result)
	observability.RecordRequest("success")
	observability.RecordChunk(string(chunk.State))
	h.hub.Broadcast(sessionID, chunk)

	logger.Info().
		Str("session_id", sessionID).
		Str("provider", result.Provider).
		Str("state", string(chunk.State)).
		Str("idempotency_key", chunk.IdempotencyKey).
		Msg("Transcription served")

	writeJSON(w, http.StatusOK, chunk)
}

// buildChunk allocates the next sequence number unless the client supplied
// one for deterministic retry
func (h *Handler) buildChunk(r *http.Request, sessionID string, result *stt.Transcription) transcript.Chunk {
	if raw := r.URL.Query().Get("seq"); raw != "" {
		if seq, err := strconv.ParseInt(raw, 10, 64); err == nil && seq > 0 {
			return h.builder.BuildWithSeq(sessionID, result, seq)
		}
	}
	return h.builder.Build(sessionID, result)
}

// handleExhaustion maps total chain failure onto a generic 503. Vendor
// details go to the log and an error chunk, never to the end user.
func (h *Handler) handleExhaustion(w http.ResponseWriter, logger zerolog.Logger, sessionID string, err error) {
	var allFailed *stt.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		observability.RecordRequest("error")
		logger.Error().Err(err).Str("session_id", sessionID).Msg("Transcription failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	observability.RecordRequest("exhausted")
	event := logger.Error().Str("session_id", sessionID)
	for _, pe := range allFailed.ProviderErrors {
		event = event.Str(fmt.Sprintf("provider_%s", pe.Provider), pe.Err.Error())
	}
	event.Msg("All transcription providers exhausted")

	chunk := h.builder.ErrorChunk(sessionID, "none", "transcription unavailable")
	observability.RecordChunk(string(chunk.State))
	h.hub.Broadcast(sessionID, chunk)

	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "transcription temporarily unavailable"})
}

// handleProviders exposes the chain and circuit states for operators
func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	type providerStatus struct {
		Name         string `json:"name"`
		CircuitState string `json:"circuit_state"`
	}

	names := h.registry.RegisteredProviders()
	statuses := make([]providerStatus, 0, len(names))
	for _, name := range names {
		state, _ := h.registry.CircuitState(name)
		statuses = append(statuses, providerStatus{Name: name, CircuitState: state.String()})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": statuses})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
