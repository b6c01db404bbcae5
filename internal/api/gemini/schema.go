package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Alias1177/YieldPredictor/models"
)

// PredictionSchema is the response schema the model output is constrained to
func PredictionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"predictedYield": {
				Type:        genai.TypeNumber,
				Description: "The predicted crop yield in tonnes per hectare.",
			},
			"unit": {
				Type:        genai.TypeString,
				Description: "The unit of measurement for the yield, e.g., 'tonnes/hectare'.",
			},
			"confidenceScore": {
				Type:        genai.TypeNumber,
				Description: "A confidence score for the prediction, from 0.0 to 1.0. Higher is more confident.",
			},
			"recommendations": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title": {
							Type:        genai.TypeString,
							Description: "A short, actionable title for the recommendation.",
						},
						"description": {
							Type:        genai.TypeString,
							Description: "A detailed explanation of the recommendation and its potential impact.",
						},
					},
					Required: []string{"title", "description"},
				},
			},
		},
		Required: []string{"predictedYield", "unit", "confidenceScore", "recommendations"},
	}
}

// BuildPrompt embeds every request field into the instruction sent to the model
func BuildPrompt(req models.PredictionRequest) string {
	var sb strings.Builder
	sb.WriteString("Act as an advanced agricultural AI expert system. Your purpose is to predict crop yields with high accuracy based on provided data.\n")
	sb.WriteString("Analyze the following agricultural parameters and provide a crop yield prediction. Also, offer actionable recommendations to improve the yield.\n\n")
	sb.WriteString("Input Data:\n")
	sb.WriteString(fmt.Sprintf("- Crop Type: %s\n", req.Crop))
	sb.WriteString(fmt.Sprintf("- Land Area: %s hectares\n", number(req.Area)))
	sb.WriteString(fmt.Sprintf("- Soil Type: %s\n", req.SoilType))
	sb.WriteString(fmt.Sprintf("- Annual Rainfall: %s mm\n", number(req.AnnualRainfall)))
	sb.WriteString(fmt.Sprintf("- Average Temperature: %s°C\n", number(req.AvgTemperature)))
	sb.WriteString(fmt.Sprintf("- Nitrogen Level (N): %s kg/ha\n", number(req.Nitrogen)))
	sb.WriteString(fmt.Sprintf("- Phosphorus Level (P): %s kg/ha\n", number(req.Phosphorus)))
	sb.WriteString(fmt.Sprintf("- Potassium Level (K): %s kg/ha\n", number(req.Potassium)))
	sb.WriteString("\nYou MUST respond ONLY with a valid JSON object that conforms to the provided schema. ")
	sb.WriteString("Do not include any text, explanation, or markdown formatting before or after the JSON object.\n")
	return sb.String()
}

func number(v float64) string {
	return fmt.Sprintf("%g", v)
}
