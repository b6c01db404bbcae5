package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Supported crops
var Crops = []string{"Corn", "Wheat", "Rice", "Soybean", "Cotton"}

// Supported soil types
var SoilTypes = []string{"Loam", "Clay", "Sandy", "Silt", "Peat"}

// PredictionRequest holds the agricultural parameters entered in the form
type PredictionRequest struct {
	Crop           string  `json:"crop"`
	Area           float64 `json:"area"`           // hectares
	SoilType       string  `json:"soilType"`
	AnnualRainfall float64 `json:"annualRainfall"` // mm
	AvgTemperature float64 `json:"avgTemperature"` // °C
	Nitrogen       float64 `json:"nitrogen"`       // kg/ha
	Phosphorus     float64 `json:"phosphorus"`     // kg/ha
	Potassium      float64 `json:"potassium"`      // kg/ha
}

// Recommendation is a single actionable suggestion returned with a forecast
type Recommendation struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// PredictionResponse is a validated yield forecast.
// Build it with ValidateResponse, never from raw backend output directly.
type PredictionResponse struct {
	PredictedYield  float64          `json:"predictedYield" yaml:"predictedYield"`
	Unit            string           `json:"unit" yaml:"unit"`
	ConfidenceScore float64          `json:"confidenceScore" yaml:"confidenceScore"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
}

// DefaultRequest returns the values the input form starts with
func DefaultRequest() PredictionRequest {
	return PredictionRequest{
		Crop:           "Corn",
		Area:           50,
		SoilType:       "Loam",
		AnnualRainfall: 700,
		AvgTemperature: 22,
		Nitrogen:       120,
		Phosphorus:     50,
		Potassium:      50,
	}
}

// Validate checks user input before it is sent to any backend
func (r PredictionRequest) Validate() error {
	if !contains(Crops, r.Crop) {
		return NewValidationError("crop", fmt.Sprintf("Unsupported crop %q. Choose one of: %s.", r.Crop, strings.Join(Crops, ", ")))
	}
	if !contains(SoilTypes, r.SoilType) {
		return NewValidationError("soilType", fmt.Sprintf("Unsupported soil type %q. Choose one of: %s.", r.SoilType, strings.Join(SoilTypes, ", ")))
	}
	if !finite(r.Area) || r.Area <= 0 {
		return NewValidationError("area", "Land area must be a positive number of hectares.")
	}
	if !finite(r.AnnualRainfall) || r.AnnualRainfall < 0 {
		return NewValidationError("annualRainfall", "Annual rainfall must be zero or more millimetres.")
	}
	if !finite(r.AvgTemperature) {
		return NewValidationError("avgTemperature", "Average temperature must be a number.")
	}

	nutrients := []struct {
		field string
		label string
		value float64
	}{
		{"nitrogen", "Nitrogen", r.Nitrogen},
		{"phosphorus", "Phosphorus", r.Phosphorus},
		{"potassium", "Potassium", r.Potassium},
	}
	for _, n := range nutrients {
		if !finite(n.value) || n.value < 0 {
			return NewValidationError(n.field, n.label+" level must be zero or more kg/ha.")
		}
	}

	return nil
}

// WithField returns a copy of the request with one form field set from its text value.
// Keys are the JSON field names, matched case-insensitively.
func (r PredictionRequest) WithField(key, value string) (PredictionRequest, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch key {
	case "crop":
		r.Crop = canonical(Crops, value)
		return r, nil
	case "soiltype", "soil":
		r.SoilType = canonical(SoilTypes, value)
		return r, nil
	}

	var target *float64
	switch key {
	case "area":
		target = &r.Area
	case "annualrainfall", "rainfall":
		target = &r.AnnualRainfall
	case "avgtemperature", "temperature", "temp":
		target = &r.AvgTemperature
	case "nitrogen", "n":
		target = &r.Nitrogen
	case "phosphorus", "p":
		target = &r.Phosphorus
	case "potassium", "k":
		target = &r.Potassium
	default:
		return r, NewValidationError(key, fmt.Sprintf("Unknown field %q.", key))
	}

	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return r, NewValidationError(key, fmt.Sprintf("%q is not a number.", value))
	}
	*target = num
	return r, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// canonical maps "corn" to "Corn"; unknown values are returned unchanged
func canonical(list []string, v string) string {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return item
		}
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
