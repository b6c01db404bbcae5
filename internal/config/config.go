package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Backend identifiers accepted by DEFAULT_BACKEND
const (
	BackendGemini = "gemini"
	BackendLocal  = "local"
)

// Config holds all application configuration
type Config struct {
	APIKey           string // Gemini credential; empty leaves the Gemini backend unavailable
	GeminiModel      string
	LocalModelURL    string
	DefaultBackend   string
	RequestTimeout   int // seconds
	RequestsPerSec   int
	LocalRetries     int
	LogLevel         string
	LocalModelAddr   string // listen address of cmd/localmodel
	TelegramBotToken string
	MetricsAddr      string // where cmd/tgbot serves /metrics; empty disables it
}

// Timeout returns RequestTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Load initializes configuration from .env, an optional yieldpredictor.yaml and environment variables.
// Environment variables win over the file, the file wins over defaults.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("yieldpredictor")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("local_model_url", "http://127.0.0.1:5000/predict")
	v.SetDefault("default_backend", BackendGemini)
	v.SetDefault("request_timeout", 30)
	v.SetDefault("requests_per_sec", 5)
	v.SetDefault("local_model_retries", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("local_model_addr", "127.0.0.1:5000")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		APIKey:           firstNonEmpty(v.GetString("api_key"), v.GetString("gemini_api_key")),
		GeminiModel:      v.GetString("gemini_model"),
		LocalModelURL:    v.GetString("local_model_url"),
		DefaultBackend:   strings.ToLower(strings.TrimSpace(v.GetString("default_backend"))),
		RequestTimeout:   v.GetInt("request_timeout"),
		RequestsPerSec:   v.GetInt("requests_per_sec"),
		LocalRetries:     v.GetInt("local_model_retries"),
		LogLevel:         v.GetString("log_level"),
		LocalModelAddr:   v.GetString("local_model_addr"),
		TelegramBotToken: v.GetString("telegram_bot_token"),
		MetricsAddr:      v.GetString("metrics_addr"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultBackend != BackendGemini && c.DefaultBackend != BackendLocal {
		return fmt.Errorf("DEFAULT_BACKEND must be %q or %q, got %q", BackendGemini, BackendLocal, c.DefaultBackend)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout)
	}
	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("REQUESTS_PER_SEC must be positive, got %d", c.RequestsPerSec)
	}
	if c.LocalRetries < 0 {
		return fmt.Errorf("LOCAL_MODEL_RETRIES must not be negative, got %d", c.LocalRetries)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
