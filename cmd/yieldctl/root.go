package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/YieldPredictor/internal/config"
	"github.com/Alias1177/YieldPredictor/internal/render"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var (
	flagConfig  string
	flagBackend string
	flagOutput  string
	flagTimeout time.Duration

	cfg    *config.Config
	format render.Format
)

var rootCmd = &cobra.Command{
	Use:               "yieldctl",
	Short:             "Crop yield forecasts from Gemini or a local model",
	Long:              "yieldctl sends field parameters to a prediction backend and prints the yield forecast with recommendations.",
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a yaml config file (default ./yieldpredictor.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "prediction backend: gemini or local (default DEFAULT_BACKEND)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, markdown, json or yaml")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "per-request timeout (default REQUEST_TIMEOUT)")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if flagConfig != "" {
		if err := os.Setenv("CONFIG_FILE", flagConfig); err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)

	if flagBackend == "" {
		flagBackend = cfg.DefaultBackend
	}
	flagTimeout = applyTimeout(cfg, flagTimeout)

	format, err = render.ParseFormat(flagOutput)
	return err
}

// applyTimeout makes d the request timeout of cfg, so the backends built from it
// honour the flag too. A zero d keeps the configured value.
func applyTimeout(cfg *config.Config, d time.Duration) time.Duration {
	if d <= 0 {
		return cfg.Timeout()
	}
	cfg.RequestTimeout = int(math.Ceil(d.Seconds()))
	return d
}
