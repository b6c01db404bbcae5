package localmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/YieldPredictor/internal/config"
	platformhttp "github.com/Alias1177/YieldPredictor/internal/platform/http"
	"github.com/Alias1177/YieldPredictor/models"
)

// DefaultEndpoint is where the local model server listens
const DefaultEndpoint = "http://127.0.0.1:5000/predict"

const maxBodyBytes = 1 << 20

// Client calls the locally hosted model server
type Client struct {
	http     *platformhttp.Client
	endpoint string
	origin   string
	logger   zerolog.Logger
}

// Options configures the local model client
type Options struct {
	Endpoint       string
	Timeout        time.Duration
	RequestsPerSec int
	MaxRetries     int
}

// payload is the subset of the request the local model consumes; area is not sent
type payload struct {
	Crop           string  `json:"crop"`
	SoilType       string  `json:"soilType"`
	AnnualRainfall float64 `json:"annualRainfall"`
	AvgTemperature float64 `json:"avgTemperature"`
	Nitrogen       float64 `json:"nitrogen"`
	Phosphorus     float64 `json:"phosphorus"`
	Potassium      float64 `json:"potassium"`
}

type errorBody struct {
	Error *string `json:"error"`
}

// NewClient creates a local model client
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	return &Client{
		http: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:        opts.Timeout,
			RequestsPerSec: opts.RequestsPerSec,
			MaxRetries:     opts.MaxRetries,
		}),
		endpoint: opts.Endpoint,
		origin:   originOf(opts.Endpoint),
		logger:   log.With().Str("component", "local_model_client").Logger(),
	}
}

// Name returns the registry identifier of this backend
func (c *Client) Name() string {
	return config.BackendLocal
}

// Predict sends the request to the local model server and validates the answer
func (c *Client) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResponse, error) {
	body, err := json.Marshal(toPayload(req))
	if err != nil {
		return nil, models.NewUpstreamError(0, "Failed to encode the prediction request.", err)
	}

	c.logger.Debug().Str("endpoint", c.endpoint).RawJSON("payload", body).Msg("Sending prediction request")

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", c.endpoint).Msg("Local model server unreachable")
		return nil, c.networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.logger.Error().Err(err).Msg("Reading local model response")
		return nil, c.networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(data)
		c.logger.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("Local model server returned an error")
		return nil, models.NewUpstreamError(
			resp.StatusCode,
			fmt.Sprintf("Local model server error: %s - %s", http.StatusText(resp.StatusCode), detail),
			fmt.Errorf("status %d: %s", resp.StatusCode, string(data)),
		)
	}

	prediction, err := models.ValidateResponse(data)
	if err != nil {
		c.logger.Error().Err(err).Str("response", string(data)).Msg("Invalid response from local model server")
		return nil, err
	}

	c.logger.Debug().Float64("yield", prediction.PredictedYield).Msg("Local prediction received")
	return prediction, nil
}

func (c *Client) networkError(err error) *models.PredictionError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.NewNetworkError(
			fmt.Sprintf("The local model server at %s did not respond in time. Please ensure it is running and not overloaded.", c.origin),
			err,
		)
	}
	return models.NewNetworkError(
		fmt.Sprintf("Could not connect to the local model server. Please ensure it is running on %s and that CORS is enabled.", c.origin),
		err,
	)
}

func toPayload(req models.PredictionRequest) payload {
	return payload{
		Crop:           req.Crop,
		SoilType:       req.SoilType,
		AnnualRainfall: req.AnnualRainfall,
		AvgTemperature: req.AvgTemperature,
		Nitrogen:       req.Nitrogen,
		Phosphorus:     req.Phosphorus,
		Potassium:      req.Potassium,
	}
}

func errorDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return "Failed to parse error response from local server."
	}
	if body.Error == nil || *body.Error == "" {
		return "Unknown error"
	}
	return *body.Error
}

func originOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Scheme + "://" + u.Host
}
