package models

import (
	"context"
	"errors"
)

// ErrorKind classifies why a prediction failed
type ErrorKind int

const (
	// KindConfiguration means the backend cannot be used until it is reconfigured
	KindConfiguration ErrorKind = iota + 1
	// KindNetwork is a transport failure: refused connection, DNS, timeout
	KindNetwork
	// KindUpstream means the remote answered but reported a failure
	KindUpstream
	// KindValidation means a response arrived but broke the response contract
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindNetwork:
		return "NetworkError"
	case KindUpstream:
		return "UpstreamError"
	case KindValidation:
		return "ValidationError"
	default:
		return "UnknownError"
	}
}

// PredictionError is the only error type a Predictor returns.
// Error() yields Message alone; the lower-level cause is kept for logs via Unwrap.
type PredictionError struct {
	Kind       ErrorKind
	Message    string
	Field      string // offending field, validation only
	StatusCode int    // HTTP status, upstream only
	Err        error
}

func (e *PredictionError) Error() string {
	return e.Message
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Is matches another *PredictionError of the same kind, so errors.Is(err, &PredictionError{Kind: KindNetwork}) works
func (e *PredictionError) Is(target error) bool {
	t, ok := target.(*PredictionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

func NewConfigurationError(message string, cause error) *PredictionError {
	return &PredictionError{Kind: KindConfiguration, Message: message, Err: cause}
}

func NewNetworkError(message string, cause error) *PredictionError {
	return &PredictionError{Kind: KindNetwork, Message: message, Err: cause}
}

func NewUpstreamError(statusCode int, message string, cause error) *PredictionError {
	return &PredictionError{Kind: KindUpstream, Message: message, StatusCode: statusCode, Err: cause}
}

func NewValidationError(field, message string) *PredictionError {
	return &PredictionError{Kind: KindValidation, Field: field, Message: message}
}

// KindOf returns the kind of err, or 0 when err is not a *PredictionError
func KindOf(err error) ErrorKind {
	var pe *PredictionError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// Normalize folds any error into the taxonomy.
// A *PredictionError passes through; deadlines become network errors; anything else is upstream.
func Normalize(err error) *PredictionError {
	if err == nil {
		return nil
	}
	var pe *PredictionError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError("The prediction service did not respond in time. Please check it is reachable and try again.", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewNetworkError("The prediction request was cancelled.", err)
	}
	return NewUpstreamError(0, "The prediction service failed unexpectedly. Please try again.", err)
}
