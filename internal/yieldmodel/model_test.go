package yieldmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optimalInput() Input {
	return Input{
		Crop: "Corn", SoilType: "Loam", AnnualRainfall: 700, AvgTemperature: 22,
		Nitrogen: 120, Phosphorus: 50, Potassium: 50,
	}
}

func TestEstimateOptimalConditions(t *testing.T) {
	y, confidence := Estimate(optimalInput())
	// 8.0 * 1.12 (N) * 1.1 (P) * 1.025 (K)
	assert.Equal(t, 10.1, y)
	assert.Equal(t, 0.95, confidence)
}

func TestEstimatePoorConditions(t *testing.T) {
	in := Input{
		Crop: "Wheat", SoilType: "Sandy", AnnualRainfall: 300, AvgTemperature: 30,
		Nitrogen: 0, Phosphorus: 20, Potassium: 100,
	}
	y, confidence := Estimate(in)
	assert.InDelta(t, 1.11, y, 1e-9)
	assert.InDelta(t, 0.915, confidence, 0.006)
}

func TestEstimateUnknownCropAndSoil(t *testing.T) {
	in := optimalInput()
	in.Crop, in.SoilType = "Barley", "Gravel"
	y, _ := Estimate(in)
	// 5.0 base, neutral soil
	assert.InDelta(t, 5.0*1.12*1.1*1.025, y, 0.005)
}

func TestFactors(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"rainfall optimal low edge", rainfallFactor(600), 1.0},
		{"rainfall dry", rainfallFactor(0), 0.7},
		{"rainfall wet", rainfallFactor(1500), 0.7},
		{"rainfall very wet capped", rainfallFactor(5000), 0.7},
		{"rainfall slightly wet", rainfallFactor(1100), 0.9},
		{"temperature optimal", temperatureFactor(26), 1.0},
		{"temperature cold floor", temperatureFactor(-10), 0.6},
		{"temperature warm", temperatureFactor(28), 0.7},
		{"nitrogen zero", nitrogenFactor(0), 0.7},
		{"nitrogen capped", nitrogenFactor(400), 1.2},
		{"phosphorus zero", phosphorusFactor(0), 0.8},
		{"phosphorus capped", phosphorusFactor(200), 1.15},
		{"potassium zero", potassiumFactor(0), 0.85},
		{"potassium capped", potassiumFactor(200), 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.got, 1e-9)
		})
	}
}

func TestRecommend(t *testing.T) {
	recs := Recommend(optimalInput())
	require.Len(t, recs, 1)
	assert.Equal(t, "Maintain Current Practices", recs[0].Title)

	recs = Recommend(Input{
		Crop: "Wheat", SoilType: "Sandy", AnnualRainfall: 300, AvgTemperature: 30,
		Nitrogen: 0, Phosphorus: 20, Potassium: 10,
	})
	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
		assert.NotEmpty(t, r.Description)
	}
	assert.Equal(t, []string{
		"Increase Irrigation",
		"Temperature Management",
		"Increase Nitrogen Application",
		"Add Phosphorus Fertilizer",
		"Supplement Potassium",
	}, titles)
	assert.Contains(t, recs[0].Description, "(300.0mm)")

	recs = Recommend(Input{Crop: "Rice", SoilType: "Silt", AnnualRainfall: 1200, AvgTemperature: 22, Nitrogen: 180, Phosphorus: 50, Potassium: 50})
	require.Len(t, recs, 2)
	assert.Equal(t, "Improve Drainage", recs[0].Title)
	assert.Equal(t, "Reduce Nitrogen Application", recs[1].Title)
}

func TestPredictAssemblesResponse(t *testing.T) {
	resp := Predict(optimalInput())
	assert.Equal(t, Unit, resp.Unit)
	assert.GreaterOrEqual(t, resp.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, resp.ConfidenceScore, 1.0)
	assert.NotEmpty(t, resp.Recommendations)
}
