package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/Alias1177/YieldPredictor/internal/config"
	"github.com/Alias1177/YieldPredictor/internal/telemetry"
	"github.com/Alias1177/YieldPredictor/internal/yieldmodel"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log.Logger = log.Logger.Level(level)
	}

	provider, metrics, err := telemetry.Setup("yield-localmodel")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	otel.SetMeterProvider(provider)

	srv := &http.Server{
		Addr:              cfg.LocalModelAddr,
		Handler:           yieldmodel.NewServer().Handler(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.LocalModelAddr).Msg("Local model server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Meter provider shutdown failed")
	}
}
