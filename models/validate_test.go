package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormed = `{
	"predictedYield": 8.5,
	"unit": "tonnes/hectare",
	"confidenceScore": 0.82,
	"recommendations": [
		{"title": "Increase nitrogen", "description": "Apply 20 kg/ha more before tasseling."},
		{"title": "Monitor moisture", "description": "Check soil moisture weekly."}
	]
}`

func TestValidateResponseAcceptsWellFormed(t *testing.T) {
	resp, err := ValidateResponse([]byte(wellFormed))
	require.NoError(t, err)

	assert.Equal(t, 8.5, resp.PredictedYield)
	assert.Equal(t, "tonnes/hectare", resp.Unit)
	assert.Equal(t, 0.82, resp.ConfidenceScore)
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, "Increase nitrogen", resp.Recommendations[0].Title)
	assert.Equal(t, "Monitor moisture", resp.Recommendations[1].Title)
}

func TestValidateResponseEmptyRecommendations(t *testing.T) {
	resp, err := ValidateResponse([]byte(`{"predictedYield":0,"unit":"t/ha","confidenceScore":1,"recommendations":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
}

func TestValidateResponseConfidenceOutOfRange(t *testing.T) {
	for _, score := range []string{"-0.01", "1.0001", "2", "-5", "100"} {
		t.Run(score, func(t *testing.T) {
			raw := `{"predictedYield":4,"unit":"t/ha","confidenceScore":` + score + `,"recommendations":[]}`
			_, err := ValidateResponse([]byte(raw))
			requireValidationError(t, err, "confidenceScore")
		})
	}
}

func TestValidateResponseConfidenceBounds(t *testing.T) {
	for _, score := range []string{"0", "0.0", "1", "1.0", "0.5"} {
		raw := `{"predictedYield":4,"unit":"t/ha","confidenceScore":` + score + `,"recommendations":[]}`
		_, err := ValidateResponse([]byte(raw))
		assert.NoError(t, err, score)
	}
}

func TestValidateResponseRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not json", `the model is sleeping`, "body"},
		{"array body", `[1,2,3]`, "body"},
		{"trailing garbage", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5,"recommendations":[]} not json at all`, "body"},
		{"two objects", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5,"recommendations":[]}{}`, "body"},
		{"missing predictedYield", `{"unit":"t/ha","confidenceScore":0.5,"recommendations":[]}`, "predictedYield"},
		{"string predictedYield", `{"predictedYield":"8.5","unit":"t/ha","confidenceScore":0.5,"recommendations":[]}`, "predictedYield"},
		{"negative predictedYield", `{"predictedYield":-1,"unit":"t/ha","confidenceScore":0.5,"recommendations":[]}`, "predictedYield"},
		{"overflowing predictedYield", `{"predictedYield":1e400,"unit":"t/ha","confidenceScore":0.5,"recommendations":[]}`, "predictedYield"},
		{"missing unit", `{"predictedYield":1,"confidenceScore":0.5,"recommendations":[]}`, "unit"},
		{"empty unit", `{"predictedYield":1,"unit":"","confidenceScore":0.5,"recommendations":[]}`, "unit"},
		{"numeric unit", `{"predictedYield":1,"unit":3,"confidenceScore":0.5,"recommendations":[]}`, "unit"},
		{"missing confidence", `{"predictedYield":1,"unit":"t/ha","recommendations":[]}`, "confidenceScore"},
		{"null confidence", `{"predictedYield":1,"unit":"t/ha","confidenceScore":null,"recommendations":[]}`, "confidenceScore"},
		{"missing recommendations", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5}`, "recommendations"},
		{"object recommendations", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5,"recommendations":{}}`, "recommendations"},
		{"scalar recommendation", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5,"recommendations":["water more"]}`, "recommendations[0]"},
		{"missing title", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5,"recommendations":[{"description":"d"}]}`, "recommendations[0].title"},
		{"empty description", `{"predictedYield":1,"unit":"t/ha","confidenceScore":0.5,"recommendations":[{"title":"a","description":"d"},{"title":"b","description":""}]}`, "recommendations[1].description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ValidateResponse([]byte(tt.raw))
			assert.Nil(t, resp)
			requireValidationError(t, err, tt.field)
		})
	}
}

func TestValidateResponseRoundTrip(t *testing.T) {
	original := PredictionResponse{
		PredictedYield:  3.75,
		Unit:            "tonnes/hectare",
		ConfidenceScore: 0.91,
		Recommendations: []Recommendation{
			{Title: "Add Phosphorus Fertilizer", Description: "Phosphorus is low."},
			{Title: "Supplement Potassium", Description: "Potassium is below optimal."},
			{Title: "Improve Drainage", Description: "High rainfall may cause waterlogging."},
		},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := ValidateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, original, *decoded)
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	pe := NewUpstreamError(502, "bad gateway", nil)
	assert.Same(t, pe, Normalize(pe))

	assert.Equal(t, KindUpstream, Normalize(errors.New("boom")).Kind)
	assert.Equal(t, "The prediction service failed unexpectedly. Please try again.", Normalize(errors.New("boom")).Error())
}

func requireValidationError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var pe *PredictionError
	require.True(t, errors.As(err, &pe), "expected *PredictionError, got %T", err)
	assert.Equal(t, KindValidation, pe.Kind)
	assert.Equal(t, field, pe.Field)
	assert.NotEmpty(t, pe.Message)
}
