package backend

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/YieldPredictor/internal/api/gemini"
	"github.com/Alias1177/YieldPredictor/internal/api/localmodel"
	"github.com/Alias1177/YieldPredictor/internal/config"
	"github.com/Alias1177/YieldPredictor/models"
)

var (
	ErrBackendNotFound   = errors.New("backend not found")
	ErrBackendRegistered = errors.New("backend already registered")
	ErrBackendInvalid    = errors.New("backend name is required")
)

var labels = map[string]string{
	config.BackendGemini: "Gemini AI",
	config.BackendLocal:  "Local Python Model",
}

// Label returns the display name of a backend
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// Registry holds the available predictors by name
type Registry struct {
	mu       sync.RWMutex
	backends map[string]models.Predictor
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{backends: map[string]models.Predictor{}}
}

// Register adds a predictor under its own name
func (r *Registry) Register(p models.Predictor) error {
	if p == nil {
		return errors.New("backend is nil")
	}
	key := normalize(p.Name())
	if key == "" {
		return ErrBackendInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[key]; exists {
		return ErrBackendRegistered
	}
	r.backends[key] = p
	r.order = append(r.order, key)
	return nil
}

// Get returns a predictor by name
func (r *Registry) Get(name string) (models.Predictor, error) {
	key := normalize(name)
	if key == "" {
		return nil, ErrBackendInvalid
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.backends[key]
	if !ok {
		return nil, ErrBackendNotFound
	}
	return p, nil
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Unavailable stands in for a backend that could not be constructed.
// Every call fails with the construction error and touches no network.
type Unavailable struct {
	BackendName string
	Err         *models.PredictionError
}

func (u *Unavailable) Name() string {
	return u.BackendName
}

func (u *Unavailable) Predict(context.Context, models.PredictionRequest) (*models.PredictionResponse, error) {
	return nil, u.Err
}

// Build creates the registry holding both backends from configuration.
// A missing Gemini credential does not fail the build; the Gemini slot becomes Unavailable.
func Build(ctx context.Context, cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()
	logger := log.With().Str("component", "backend_registry").Logger()

	var remote models.Predictor
	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:         cfg.APIKey,
		Model:          cfg.GeminiModel,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Gemini backend unavailable")
		remote = &Unavailable{BackendName: config.BackendGemini, Err: models.Normalize(err)}
	} else {
		remote = client
	}
	if err := reg.Register(remote); err != nil {
		return nil, err
	}

	local := localmodel.NewClient(localmodel.Options{
		Endpoint:       cfg.LocalModelURL,
		Timeout:        cfg.Timeout(),
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.LocalRetries,
	})
	if err := reg.Register(local); err != nil {
		return nil, err
	}

	logger.Debug().Strs("backends", reg.Names()).Msg("Backends registered")
	return reg, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
