package yieldmodel

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var requiredFields = []string{"crop", "soilType", "annualRainfall", "avgTemperature", "nitrogen", "phosphorus", "potassium"}

// Server exposes the model over HTTP
type Server struct {
	logger   zerolog.Logger
	requests metric.Int64Counter
}

// NewServer records request counts on the global meter provider
func NewServer() *Server {
	s := &Server{logger: log.With().Str("component", "local_model_server").Logger()}
	counter, err := otel.Meter("yieldmodel").Int64Counter("local_model_requests_total",
		metric.WithDescription("Prediction requests by response status"))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Creating request counter")
	} else {
		s.requests = counter
	}
	return s
}

func (s *Server) count(r *http.Request, status int) {
	if s.requests == nil {
		return
	}
	s.requests.Add(r.Context(), 1, metric.WithAttributes(attribute.Int("status", status)))
}

// Handler returns the routes: POST /predict and GET /health, both CORS-enabled.
// metrics is mounted on /metrics when not nil.
func (s *Server) Handler(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return cors(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.count(r, http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		s.count(r, http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	for _, field := range requiredFields {
		if _, ok := data[field]; !ok {
			s.count(r, http.StatusBadRequest)
			writeError(w, http.StatusBadRequest, "Missing required field: "+field)
			return
		}
	}

	in, err := parseInput(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rejecting prediction request")
		s.count(r, http.StatusInternalServerError)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := Predict(in)
	s.logger.Info().
		Str("crop", in.Crop).
		Str("soil", in.SoilType).
		Float64("yield", resp.PredictedYield).
		Float64("confidence", resp.ConfidenceScore).
		Msg("Prediction served")
	s.count(r, http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func parseInput(data map[string]any) (Input, error) {
	var in Input
	var err error

	in.Crop = fmt.Sprint(data["crop"])
	in.SoilType = fmt.Sprint(data["soilType"])
	if in.AnnualRainfall, err = toFloat(data, "annualRainfall"); err != nil {
		return in, err
	}
	if in.AvgTemperature, err = toFloat(data, "avgTemperature"); err != nil {
		return in, err
	}
	if in.Nitrogen, err = toFloat(data, "nitrogen"); err != nil {
		return in, err
	}
	if in.Phosphorus, err = toFloat(data, "phosphorus"); err != nil {
		return in, err
	}
	if in.Potassium, err = toFloat(data, "potassium"); err != nil {
		return in, err
	}
	return in, nil
}

// toFloat accepts JSON numbers and numeric strings; NaN and infinities are rejected
func toFloat(data map[string]any, key string) (float64, error) {
	switch v := data[key].(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("could not convert %s to float: %q", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("could not convert %s to float: %v", key, v)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes before writing the status, so an encoding failure becomes a 500
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Encoding response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Error().Err(err).Msg("Writing response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
