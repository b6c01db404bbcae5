package yieldmodel

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Alias1177/YieldPredictor/models"
)

// Unit is the unit every estimate is expressed in
const Unit = "tonnes/hectare"

// Base yields per crop (tonnes/hectare)
var baseYields = map[string]float64{
	"Corn":    8.0,
	"Wheat":   3.5,
	"Rice":    4.5,
	"Soybean": 2.8,
	"Cotton":  1.2,
}

// Soil type multipliers
var soilMultipliers = map[string]float64{
	"Loam":  1.0,
	"Clay":  0.9,
	"Sandy": 0.85,
	"Silt":  1.05,
	"Peat":  0.95,
}

const (
	defaultBaseYield = 5.0
	maxConfidence    = 0.95
)

// Input is what the local model consumes; land area plays no part in the estimate
type Input struct {
	Crop           string
	SoilType       string
	AnnualRainfall float64
	AvgTemperature float64
	Nitrogen       float64
	Phosphorus     float64
	Potassium      float64
}

// Estimate computes yield and confidence with the rule-based model.
// Unknown crops and soils fall back to neutral values instead of failing.
func Estimate(in Input) (float64, float64) {
	base, ok := baseYields[in.Crop]
	if !ok {
		base = defaultBaseYield
	}
	soil, ok := soilMultipliers[in.SoilType]
	if !ok {
		soil = 1.0
	}

	y := base * soil
	y *= rainfallFactor(in.AnnualRainfall)
	y *= temperatureFactor(in.AvgTemperature)
	y *= nitrogenFactor(in.Nitrogen) * phosphorusFactor(in.Phosphorus) * potassiumFactor(in.Potassium)

	score := (inRange(in.AnnualRainfall, 600, 1000, 0.8) +
		inRange(in.AvgTemperature, 18, 26, 0.8) +
		inRange(in.Nitrogen, 100, 150, 0.9) +
		inRange(in.Phosphorus, 40, 60, 0.9) +
		inRange(in.Potassium, 40, 80, 0.9)) / 5
	confidence := math.Min(maxConfidence, 0.7+score*0.25)

	return round2(y), round2(confidence)
}

// Optimal rainfall is 600-1000mm
func rainfallFactor(mm float64) float64 {
	switch {
	case mm >= 600 && mm <= 1000:
		return 1.0
	case mm < 600:
		return 0.7 + (mm/600)*0.3
	default:
		return 1.0 - math.Min(0.3, (mm-1000)/1000)
	}
}

// Optimal temperature is 18-26°C
func temperatureFactor(c float64) float64 {
	if c >= 18 && c <= 26 {
		return 1.0
	}
	return math.Max(0.6, 1.0-math.Abs(c-22)/20)
}

func nitrogenFactor(n float64) float64 {
	if n <= 0 {
		return 0.7
	}
	return math.Min(1.2, 0.8+(n/150)*0.4)
}

func phosphorusFactor(p float64) float64 {
	if p <= 0 {
		return 0.8
	}
	return math.Min(1.15, 0.85+(p/60)*0.3)
}

func potassiumFactor(k float64) float64 {
	if k <= 0 {
		return 0.85
	}
	return math.Min(1.1, 0.9+(k/80)*0.2)
}

func inRange(v, lo, hi, outside float64) float64 {
	if v >= lo && v <= hi {
		return 1.0
	}
	return outside
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recommend returns the agronomic advice for the input, never empty
func Recommend(in Input) []models.Recommendation {
	var recs []models.Recommendation

	switch {
	case in.AnnualRainfall < 600:
		recs = append(recs, models.Recommendation{
			Title:       "Increase Irrigation",
			Description: fmt.Sprintf("Annual rainfall (%smm) is below optimal. Consider implementing irrigation systems to maintain consistent soil moisture.", num(in.AnnualRainfall)),
		})
	case in.AnnualRainfall > 1000:
		recs = append(recs, models.Recommendation{
			Title:       "Improve Drainage",
			Description: fmt.Sprintf("High rainfall (%smm) may cause waterlogging. Ensure proper drainage systems are in place.", num(in.AnnualRainfall)),
		})
	}

	if in.AvgTemperature < 18 || in.AvgTemperature > 26 {
		recs = append(recs, models.Recommendation{
			Title:       "Temperature Management",
			Description: fmt.Sprintf("Average temperature (%s°C) is outside optimal range (18-26°C). Consider crop varieties adapted to your climate.", num(in.AvgTemperature)),
		})
	}

	switch {
	case in.Nitrogen < 100:
		recs = append(recs, models.Recommendation{
			Title:       "Increase Nitrogen Application",
			Description: fmt.Sprintf("Current nitrogen level (%s kg/ha) is below optimal. Consider applying additional nitrogen fertilizer to improve yield.", num(in.Nitrogen)),
		})
	case in.Nitrogen > 150:
		recs = append(recs, models.Recommendation{
			Title:       "Reduce Nitrogen Application",
			Description: fmt.Sprintf("High nitrogen levels (%s kg/ha) may not provide additional benefits and could lead to environmental issues.", num(in.Nitrogen)),
		})
	}

	if in.Phosphorus < 40 {
		recs = append(recs, models.Recommendation{
			Title:       "Add Phosphorus Fertilizer",
			Description: fmt.Sprintf("Phosphorus level (%s kg/ha) is low. Adding phosphorus can improve root development and yield.", num(in.Phosphorus)),
		})
	}

	if in.Potassium < 40 {
		recs = append(recs, models.Recommendation{
			Title:       "Supplement Potassium",
			Description: fmt.Sprintf("Potassium level (%s kg/ha) is below optimal. Adequate potassium improves disease resistance and crop quality.", num(in.Potassium)),
		})
	}

	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Title:       "Maintain Current Practices",
			Description: "Your current parameters are within optimal ranges. Continue monitoring and maintain good agricultural practices.",
		})
	}
	return recs
}

// Predict runs the model and assembles a full response
func Predict(in Input) models.PredictionResponse {
	yield, confidence := Estimate(in)
	return models.PredictionResponse{
		PredictedYield:  yield,
		Unit:            Unit,
		ConfidenceScore: confidence,
		Recommendations: Recommend(in),
	}
}

// num prints whole numbers with one decimal, like 700.0
func num(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
