package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prepflow/stt-gateway/internal/config"
	"github.com/prepflow/stt-gateway/internal/copilot"
	"github.com/prepflow/stt-gateway/internal/gateway"
	"github.com/prepflow/stt-gateway/internal/guard"
	"github.com/prepflow/stt-gateway/internal/observability"
	"github.com/prepflow/stt-gateway/internal/stt"
	"github.com/prepflow/stt-gateway/internal/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not initialized yet
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("STT Gateway starting")

	registry := stt.NewRegistryFromConfig(cfg, logger)
	builder := transcript.NewBuilder()

	requestGuard := guard.New(guard.Limits{
		guard.TierFree: cfg.FreeTierRequestsPerMinute,
		guard.TierPro:  cfg.ProTierRequestsPerMinute,
		guard.TierTeam: cfg.TeamTierRequestsPerMinute,
	})
	guardStop := make(chan struct{})
	go requestGuard.Janitor(5*time.Minute, guardStop)

	hub := gateway.NewHub(logger)
	handler := gateway.NewHandler(cfg, registry, builder, requestGuard, hub, logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	mux.HandleFunc("/health", observability.HealthCheckHandler())

	checks := map[string]observability.HealthCheckFunc{}
	var copilotClient *copilot.Client
	if cfg.CopilotURL != "" {
		copilotClient, err = copilot.NewClient(cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Copilot probe unavailable")
		} else {
			checks["copilot"] = copilotClient.HealthCheck
		}
	}
	for _, name := range registry.RegisteredProviders() {
		provider, ok := registry.Provider(name)
		if !ok {
			continue
		}
		checks[name] = func(ctx context.Context) (bool, error) {
			return provider.HealthCheck(ctx), nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/v1/transcribe", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	close(guardStop)
	if copilotClient != nil {
		_ = copilotClient.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
