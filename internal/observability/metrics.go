package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway request metrics
	transcribeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_gateway_requests_total",
		Help: "Total transcription requests by outcome",
	}, []string{"status"}) // success, exhausted, rejected, invalid

	guardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_gateway_guard_rejections_total",
		Help: "Requests rejected by the auth/rate-limit guard",
	}, []string{"reason"})

	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_gateway_audio_bytes_total",
		Help: "Total audio bytes accepted for transcription",
	})

	// Provider attempt metrics
	providerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_gateway_provider_attempts_total",
		Help: "Provider transcription attempts by outcome",
	}, []string{"provider", "status"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stt_gateway_provider_latency_seconds",
		Help:    "Provider transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"provider"})

	providerSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_gateway_provider_skips_total",
		Help: "Providers skipped because their circuit was open",
	}, []string{"provider"})

	fallbackDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_gateway_fallback_depth",
		Help:    "Zero-based index of the provider that served each successful request",
		Buckets: []float64{0, 1, 2, 3, 4},
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stt_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"provider"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"provider"})

	// Transcript chunk metrics
	chunksBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_gateway_chunks_total",
		Help: "Transcript chunks built by state",
	}, []string{"state"})

	// Broadcast metrics
	streamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stt_gateway_stream_subscribers",
		Help: "Currently connected transcript stream subscribers",
	})

	streamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_gateway_stream_drops_total",
		Help: "Subscribers dropped for not keeping up with broadcast",
	})
)

// RecordRequest records a gateway request outcome
func RecordRequest(status string) {
	transcribeRequests.WithLabelValues(status).Inc()
}

// RecordGuardRejection records a guard rejection by reason code
func RecordGuardRejection(reason string) {
	guardRejections.WithLabelValues(reason).Inc()
}

// RecordAudioBytes records accepted audio payload size
func RecordAudioBytes(n int64) {
	audioBytesReceived.Add(float64(n))
}

// RecordProviderAttempt records one provider invocation and its latency
func RecordProviderAttempt(provider string, elapsed time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	providerAttempts.WithLabelValues(provider, status).Inc()
	providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordProviderSkip records a circuit-open skip
func RecordProviderSkip(provider string) {
	providerSkips.WithLabelValues(provider).Inc()
}

// RecordFallbackDepth records which position in the chain served a request
func RecordFallbackDepth(index int) {
	fallbackDepth.Observe(float64(index))
}

// UpdateCircuitBreakerState updates the circuit breaker state gauge
func UpdateCircuitBreakerState(provider string, state int) {
	circuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments the breaker failure counter
func IncrementCircuitBreakerFailures(provider string) {
	circuitBreakerFailures.WithLabelValues(provider).Inc()
}

// RecordChunk records a built transcript chunk by state
func RecordChunk(state string) {
	chunksBuilt.WithLabelValues(state).Inc()
}

// StreamSubscriberConnected tracks a new broadcast subscriber
func StreamSubscriberConnected() {
	streamSubscribers.Inc()
}

// StreamSubscriberDisconnected tracks a departed broadcast subscriber
func StreamSubscriberDisconnected() {
	streamSubscribers.Dec()
}

// RecordStreamDrop records a subscriber dropped for backpressure
func RecordStreamDrop() {
	streamDrops.Inc()
}
