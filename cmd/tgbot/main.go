package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/YieldPredictor/internal/backend"
	"github.com/Alias1177/YieldPredictor/internal/config"
	"github.com/Alias1177/YieldPredictor/internal/telemetry"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log.Logger = log.Logger.Level(lvl)
	}

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := backend.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build prediction backends")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	provider, metrics, err := telemetry.Setup("yield-tgbot")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Meter provider shutdown failed")
		}
	}()
	if cfg.MetricsAddr != "" && metrics != nil {
		go serveMetrics(cfg.MetricsAddr, metrics)
	}

	bot := newBot(api, registry, cfg.DefaultBackend, cfg.Timeout(), provider.Meter("forecast"))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			// let in-flight edits go out
			time.Sleep(time.Second)
			log.Info().Msg("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				bot.handleMessage(update.Message)
			} else if update.CallbackQuery != nil {
				bot.handleCallback(update.CallbackQuery)
			}
		}
	}
}

func serveMetrics(addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
