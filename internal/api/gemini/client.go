package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/Alias1177/YieldPredictor/internal/config"
	"github.com/Alias1177/YieldPredictor/models"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// Generator is the part of *genai.Models the client needs
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client wraps the Gemini API client
type Client struct {
	models  Generator
	model   string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Options configures the Gemini client
type Options struct {
	APIKey         string
	Model          string
	RequestsPerSec int
}

// NewClient creates a new Gemini client.
// A blank API key fails immediately with a configuration error; nothing is sent.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, models.NewConfigurationError(
			"The Gemini API key is not configured. Set the API_KEY environment variable and restart.", nil)
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.NewConfigurationError("The Gemini client could not be initialised. Check the API configuration.", err)
	}

	return NewWithGenerator(cli.Models, opts), nil
}

// NewWithGenerator creates a client on top of an existing content generator
func NewWithGenerator(g Generator, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	return &Client{
		models:  g,
		model:   opts.Model,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		logger:  log.With().Str("component", "gemini_client").Logger(),
	}
}

// Name returns the registry identifier of this backend
func (c *Client) Name() string {
	return config.BackendGemini
}

// Predict asks the model for a forecast constrained to PredictionSchema and validates it
func (c *Client) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResponse, error) {
	if c == nil || c.models == nil {
		return nil, models.NewConfigurationError("The Gemini backend is not configured.", nil)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.transportError(err)
	}

	prompt := BuildPrompt(req)
	c.logger.Debug().Str("model", c.model).Str("prompt", prompt).Msg("Sending prompt to Gemini")

	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   PredictionSchema(),
		},
	)
	if err != nil {
		c.logger.Error().Err(err).Msg("Gemini API error")
		if isTransport(ctx, err) {
			return nil, c.transportError(err)
		}
		return nil, models.NewUpstreamError(0,
			"Failed to get prediction from the AI model. Please check the input values and try again.", err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		c.logger.Warn().Msg("Gemini returned an empty response")
		return nil, models.NewUpstreamError(0, "The AI model returned an empty response. Please try again.", nil)
	}

	if !isJSON(text) {
		c.logger.Error().Str("response", text).Msg("Gemini returned malformed JSON")
		return nil, models.NewUpstreamError(0, "The AI model returned a response that is not valid JSON. Please try again.", nil)
	}

	prediction, err := models.ValidateResponse([]byte(text))
	if err != nil {
		c.logger.Error().Err(err).Str("response", text).Msg("Invalid data structure received from Gemini")
		return nil, err
	}

	c.logger.Debug().Float64("yield", prediction.PredictedYield).Msg("Gemini prediction received")
	return prediction, nil
}

func (c *Client) transportError(err error) *models.PredictionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewNetworkError("The AI model did not respond in time. Please check your connection and try again.", err)
	}
	return models.NewNetworkError("Could not reach the Gemini API. Please check your network connection and try again.", err)
}

func isTransport(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func isJSON(text string) bool {
	return json.Valid([]byte(text))
}
