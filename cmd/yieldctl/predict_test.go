package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/YieldPredictor/internal/config"
	"github.com/Alias1177/YieldPredictor/models"
)

func TestApplySets(t *testing.T) {
	req, err := applySets(models.DefaultRequest(), []string{"crop=rice", "N=90", "rainfall= 1200 "})
	require.NoError(t, err)
	assert.Equal(t, "Rice", req.Crop)
	assert.Equal(t, 90.0, req.Nitrogen)
	assert.Equal(t, 1200.0, req.AnnualRainfall)
	assert.Equal(t, models.DefaultRequest().Potassium, req.Potassium)
}

func TestApplySetsRejects(t *testing.T) {
	_, err := applySets(models.DefaultRequest(), []string{"nitrogen"})
	assert.ErrorContains(t, err, "expected key=value")

	_, err = applySets(models.DefaultRequest(), []string{"humidity=40"})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestApplyTimeout(t *testing.T) {
	cfg := &config.Config{RequestTimeout: 30}
	assert.Equal(t, 30*time.Second, applyTimeout(cfg, 0))
	assert.Equal(t, 30, cfg.RequestTimeout)

	assert.Equal(t, 60*time.Second, applyTimeout(cfg, 60*time.Second))
	assert.Equal(t, 60*time.Second, cfg.Timeout())

	// sub-second remainders round up so the transport never cuts the call short
	assert.Equal(t, 1500*time.Millisecond, applyTimeout(cfg, 1500*time.Millisecond))
	assert.Equal(t, 2, cfg.RequestTimeout)
}
