package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// ValidateResponse checks raw backend output against the response contract.
// It decodes into an untyped tree first so no field is trusted before it is checked.
func ValidateResponse(raw []byte) (*PredictionResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &PredictionError{Kind: KindValidation, Field: "body", Message: "Response is not valid JSON.", Err: err}
	}
	// the body must hold exactly one JSON value
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, &PredictionError{Kind: KindValidation, Field: "body", Message: "Response is not valid JSON.", Err: err}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, NewValidationError("body", "Response must be a JSON object.")
	}

	predicted, err := requireNumber(obj, "predictedYield")
	if err != nil {
		return nil, err
	}
	if predicted < 0 {
		return nil, NewValidationError("predictedYield", "Predicted yield cannot be negative.")
	}

	unit, err := requireString(obj, "unit", "unit")
	if err != nil {
		return nil, err
	}

	confidence, err := requireNumber(obj, "confidenceScore")
	if err != nil {
		return nil, err
	}
	if confidence < 0 || confidence > 1 {
		return nil, NewValidationError("confidenceScore", fmt.Sprintf("Confidence score %v is outside the range 0.0 to 1.0.", confidence))
	}

	rawRecs, present := obj["recommendations"]
	if !present {
		return nil, NewValidationError("recommendations", "Response is missing recommendations.")
	}
	list, ok := rawRecs.([]any)
	if !ok {
		return nil, NewValidationError("recommendations", "Recommendations must be a list.")
	}

	recs := make([]Recommendation, 0, len(list))
	for i, item := range list {
		field := fmt.Sprintf("recommendations[%d]", i)
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, NewValidationError(field, "Each recommendation must be an object.")
		}
		title, err := requireString(rec, "title", field+".title")
		if err != nil {
			return nil, err
		}
		desc, err := requireString(rec, "description", field+".description")
		if err != nil {
			return nil, err
		}
		recs = append(recs, Recommendation{Title: title, Description: desc})
	}

	return &PredictionResponse{
		PredictedYield:  predicted,
		Unit:            unit,
		ConfidenceScore: confidence,
		Recommendations: recs,
	}, nil
}

func requireNumber(obj map[string]any, key string) (float64, error) {
	v, ok := obj[key]
	if !ok {
		return 0, NewValidationError(key, fmt.Sprintf("Response is missing %s.", key))
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, NewValidationError(key, fmt.Sprintf("%s must be a number.", key))
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, NewValidationError(key, fmt.Sprintf("%s must be a finite number.", key))
	}
	return f, nil
}

func requireString(obj map[string]any, key, field string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", NewValidationError(field, fmt.Sprintf("Response is missing %s.", field))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", NewValidationError(field, fmt.Sprintf("%s must be a non-empty string.", field))
	}
	return s, nil
}
