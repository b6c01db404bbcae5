package models

import "context"

// Predictor is a prediction backend.
// Predict returns a validated response or a *PredictionError, never a raw lower-level error.
type Predictor interface {
	Name() string
	Predict(ctx context.Context, req PredictionRequest) (*PredictionResponse, error)
}
