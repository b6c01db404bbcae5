package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Alias1177/YieldPredictor/internal/backend"
	"github.com/Alias1177/YieldPredictor/models"
)

// fakeAPI records everything the bot sends
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type stubPredictor struct {
	name string
	resp *models.PredictionResponse
	err  error

	mu   sync.Mutex
	reqs []models.PredictionRequest
}

func (s *stubPredictor) Name() string { return s.name }

func (s *stubPredictor) Predict(_ context.Context, req models.PredictionRequest) (*models.PredictionResponse, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return s.resp, s.err
}

func (s *stubPredictor) calls() []models.PredictionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PredictionRequest(nil), s.reqs...)
}

func newTestBot(t *testing.T, remote, local *stubPredictor) (*bot, *fakeAPI) {
	t.Helper()
	return newMeteredBot(t, remote, local, noop.NewMeterProvider().Meter("test"))
}

func newMeteredBot(t *testing.T, remote, local *stubPredictor, meter metric.Meter) (*bot, *fakeAPI) {
	t.Helper()
	reg := backend.NewRegistry()
	require.NoError(t, reg.Register(remote))
	require.NoError(t, reg.Register(local))
	api := &fakeAPI{}
	return newBot(api, reg, "gemini", time.Second, meter), api
}

func command(chatID int64, text string) *tgbotapi.Message {
	length := strings.IndexByte(text, ' ')
	if length < 0 {
		length = len(text)
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func forecastResponse() *models.PredictionResponse {
	return &models.PredictionResponse{
		PredictedYield:  8.5,
		Unit:            "tonnes/hectare",
		ConfidenceScore: 0.82,
		Recommendations: []models.Recommendation{{Title: "Increase nitrogen", Description: "Split the application."}},
	}
}

func TestPredictCommand(t *testing.T) {
	remote := &stubPredictor{name: "gemini", resp: forecastResponse()}
	b, api := newTestBot(t, remote, &stubPredictor{name: "local"})

	b.handleMessage(command(7, "/predict crop=rice n=90"))
	b.wg.Wait()

	calls := remote.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Rice", calls[0].Crop)
	assert.Equal(t, 90.0, calls[0].Nitrogen)

	api.mu.Lock()
	edit, ok := api.sent[len(api.sent)-1].(tgbotapi.EditMessageTextConfig)
	api.mu.Unlock()
	require.True(t, ok, "result is delivered by editing the pending message")
	assert.Equal(t, tgbotapi.ModeMarkdown, edit.ParseMode)
	assert.Contains(t, edit.Text, "*Predicted Yield:* 8.50 tonnes/hectare")
	assert.Contains(t, edit.Text, "*Confidence:* 82%")
	assert.Contains(t, edit.Text, "1. *Increase nitrogen*")
}

func TestPredictCommandRejectsBadField(t *testing.T) {
	remote := &stubPredictor{name: "gemini", resp: forecastResponse()}
	b, api := newTestBot(t, remote, &stubPredictor{name: "local"})

	b.handleMessage(command(7, "/predict humidity=40"))
	b.wg.Wait()
	assert.Contains(t, api.last(), "Validation error (humidity)")

	b.handleMessage(command(7, "/predict area=0"))
	b.wg.Wait()
	assert.Contains(t, api.last(), "Validation error (area)")

	assert.Empty(t, remote.calls())
}

func TestPredictFailureIsRendered(t *testing.T) {
	local := &stubPredictor{name: "local", err: models.NewNetworkError("Could not connect to the local model server.", nil)}
	b, api := newTestBot(t, &stubPredictor{name: "gemini"}, local)

	b.handleMessage(command(7, "/model local"))
	assert.Equal(t, "Backend set to Local Python Model.", api.last())

	b.handleMessage(command(7, "/predict"))
	b.wg.Wait()
	assert.Len(t, local.calls(), 1)
	assert.Contains(t, api.last(), "*Network error*")
	assert.Contains(t, api.last(), "Could not connect to the local model server.")
}

func TestModelCommandUnknownBackend(t *testing.T) {
	b, api := newTestBot(t, &stubPredictor{name: "gemini"}, &stubPredictor{name: "local"})

	b.handleMessage(command(7, "/model openai"))
	assert.Equal(t, `Unknown backend "openai". Available: gemini, local.`, api.last())
}

func TestSessionsArePerChat(t *testing.T) {
	b, api := newTestBot(t, &stubPredictor{name: "gemini"}, &stubPredictor{name: "local"})

	b.handleMessage(command(1, "/set crop=Wheat"))
	assert.Contains(t, api.last(), "*Crop:* Wheat")

	b.handleMessage(command(2, "/form"))
	assert.Contains(t, api.last(), "*Crop:* Corn")
}

func TestCallbacks(t *testing.T) {
	b, api := newTestBot(t, &stubPredictor{name: "gemini"}, &stubPredictor{name: "local"})

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "soil_Clay",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}},
	})
	assert.Contains(t, api.last(), "*Soil:* Clay")
	assert.Len(t, api.requests, 1)

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:      "cb2",
		Data:    "backend_local",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}},
	})
	assert.Equal(t, "Backend set to Local Python Model.", api.last())
}

func TestPlainFormEdits(t *testing.T) {
	b, api := newTestBot(t, &stubPredictor{name: "gemini"}, &stubPredictor{name: "local"})

	b.handleMessage(&tgbotapi.Message{Text: "rainfall=550 k=35", Chat: &tgbotapi.Chat{ID: 9}})
	assert.Contains(t, api.last(), "*Rainfall:* 550 mm")
	assert.Contains(t, api.last(), "50 / 35 kg/ha")

	b.handleMessage(&tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 9}})
	assert.Contains(t, api.last(), "/help")
}

func TestPredictionsAreMetered(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("forecast")

	remote := &stubPredictor{name: "gemini", resp: forecastResponse()}
	b, _ := newMeteredBot(t, remote, &stubPredictor{name: "local"}, meter)

	b.handleMessage(command(1, "/predict"))
	b.handleMessage(command(2, "/predict"))
	b.wg.Wait()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var succeeded int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "yield_predictions_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				if outcome.AsString() == "succeeded" {
					succeeded += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), succeeded, "each chat's orchestrator records on the shared meter")
}
