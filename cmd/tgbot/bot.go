package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alias1177/YieldPredictor/internal/backend"
	"github.com/Alias1177/YieldPredictor/internal/forecast"
	"github.com/Alias1177/YieldPredictor/internal/render"
	"github.com/Alias1177/YieldPredictor/models"
)

const helpText = `*Crop Yield Predictor*

/predict key=value ... run a forecast, e.g. /predict crop=Wheat rainfall=550 n=90
/set key=value ... change the form without running it
/form show the current form
/model gemini|local choose the prediction backend
/reset restore the default form

Fields: crop, area, soil, rainfall, temperature, nitrogen (n), phosphorus (p), potassium (k)`

// sender is the part of tgbotapi.BotAPI the handlers use
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// session is one chat's form and prediction state
type session struct {
	mu   sync.Mutex
	form models.PredictionRequest
	orch *forecast.Orchestrator

	settledMu sync.Mutex
	settled   map[uint64]forecast.State
}

// take returns the settled state recorded for seq
func (s *session) take(seq uint64) (forecast.State, bool) {
	s.settledMu.Lock()
	defer s.settledMu.Unlock()
	st, ok := s.settled[seq]
	delete(s.settled, seq)
	return st, ok
}

type bot struct {
	api            sender
	registry       *backend.Registry
	defaultBackend string
	timeout        time.Duration
	meter          metric.Meter
	logger         zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*session
	wg       sync.WaitGroup
}

// newBot creates the bot; every chat's orchestrator records prediction metrics on meter
func newBot(api sender, registry *backend.Registry, defaultBackend string, timeout time.Duration, meter metric.Meter) *bot {
	return &bot{
		api:            api,
		registry:       registry,
		defaultBackend: defaultBackend,
		timeout:        timeout,
		meter:          meter,
		logger:         log.With().Str("component", "tgbot").Logger(),
		sessions:       make(map[int64]*session),
	}
}

func (b *bot) session(chatID int64) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[chatID]; ok {
		return s, nil
	}

	orch, err := forecast.New(b.registry, b.defaultBackend, forecast.WithTimeout(b.timeout), forecast.WithMeter(b.meter))
	if err != nil {
		return nil, err
	}
	s := &session{form: models.DefaultRequest(), orch: orch, settled: make(map[uint64]forecast.State)}
	orch.OnChange(func(st forecast.State) {
		if st.Status != forecast.StatusSucceeded && st.Status != forecast.StatusFailed {
			return
		}
		s.settledMu.Lock()
		s.settled[st.Seq] = st
		s.settledMu.Unlock()
	})
	b.sessions[chatID] = s
	return s, nil
}

// handleMessage processes incoming text messages
func (b *bot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	s, err := b.session(chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Creating session")
		b.reply(chatID, "Sorry, there was an error. Please try again later.", nil)
		return
	}

	if message.IsCommand() {
		args := strings.Fields(message.CommandArguments())
		switch message.Command() {
		case "start":
			b.reply(chatID, "Welcome to the Crop Yield Predictor! Fill in the form and run a prediction.", mainMenuKeyboard())
		case "help":
			b.replyMarkdown(chatID, helpText)
		case "model":
			if len(args) == 0 {
				b.sendBackendMenu(chatID, s)
				return
			}
			b.selectBackend(chatID, s, args[0])
		case "set":
			if b.applyFields(chatID, s, args) {
				b.replyMarkdown(chatID, formText(s))
			}
		case "form":
			b.replyMarkdown(chatID, formText(s))
		case "reset":
			s.mu.Lock()
			s.form = models.DefaultRequest()
			s.mu.Unlock()
			b.replyMarkdown(chatID, formText(s))
		case "predict":
			if b.applyFields(chatID, s, args) {
				b.runPrediction(chatID, s)
			}
		default:
			b.reply(chatID, "Unknown command. Send /help for the list of commands.", nil)
		}
		return
	}

	switch message.Text {
	case "Main Menu":
		b.reply(chatID, "What would you like to do?", mainMenuKeyboard())
	case "Select Crop":
		b.sendChoiceMenu(chatID, "Select a crop:", "crop_", models.Crops)
	case "Select Soil":
		b.sendChoiceMenu(chatID, "Select a soil type:", "soil_", models.SoilTypes)
	case "Select Backend":
		b.sendBackendMenu(chatID, s)
	case "Show Form":
		b.replyMarkdown(chatID, formText(s))
	case "Run Prediction":
		b.runPrediction(chatID, s)
	default:
		// bare key=value lines edit the form
		if strings.Contains(message.Text, "=") && b.applyFields(chatID, s, strings.Fields(message.Text)) {
			b.replyMarkdown(chatID, formText(s))
			return
		}
		b.reply(chatID, "I didn't understand that. Send /help for the list of commands.", mainMenuKeyboard())
	}
}

func (b *bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	data := callback.Data

	// Acknowledge the callback query
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Debug().Err(err).Msg("Acknowledging callback")
	}

	s, err := b.session(chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Creating session")
		return
	}

	switch {
	case strings.HasPrefix(data, "crop_"):
		if b.applyFields(chatID, s, []string{"crop=" + strings.TrimPrefix(data, "crop_")}) {
			b.replyMarkdown(chatID, formText(s))
		}
	case strings.HasPrefix(data, "soil_"):
		if b.applyFields(chatID, s, []string{"soil=" + strings.TrimPrefix(data, "soil_")}) {
			b.replyMarkdown(chatID, formText(s))
		}
	case strings.HasPrefix(data, "backend_"):
		b.selectBackend(chatID, s, strings.TrimPrefix(data, "backend_"))
	case data == "run_prediction":
		b.runPrediction(chatID, s)
	case data == "main_menu":
		b.reply(chatID, "What would you like to do?", mainMenuKeyboard())
	}
}

// applyFields parses key=value pairs into the session form; nothing changes on error
func (b *bot) applyFields(chatID int64, s *session, pairs []string) bool {
	s.mu.Lock()
	form := s.form
	s.mu.Unlock()

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			b.reply(chatID, fmt.Sprintf("Expected key=value, got %q.", pair), nil)
			return false
		}
		next, err := form.WithField(key, value)
		if err != nil {
			b.reply(chatID, render.ErrorText(models.Normalize(err)), nil)
			return false
		}
		form = next
	}

	s.mu.Lock()
	s.form = form
	s.mu.Unlock()
	return true
}

func (b *bot) selectBackend(chatID int64, s *session, name string) {
	if err := s.orch.SelectBackend(name); err != nil {
		b.reply(chatID, fmt.Sprintf("Unknown backend %q. Available: %s.", name, strings.Join(b.registry.Names(), ", ")), nil)
		return
	}
	b.reply(chatID, fmt.Sprintf("Backend set to %s.", backend.Label(s.orch.Backend())), mainMenuKeyboard())
}

// runPrediction submits the form and edits the pending message with the outcome
func (b *bot) runPrediction(chatID int64, s *session) {
	s.mu.Lock()
	req := s.form
	s.mu.Unlock()

	ticket, err := s.orch.Submit(context.Background(), req)
	if err != nil {
		b.reply(chatID, render.ErrorText(models.Normalize(err)), nil)
		return
	}

	pending, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Running prediction..."))
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Sending pending message")
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-ticket.Done()

		text := "Superseded by a newer request."
		if ticket.Applied() {
			if st, ok := s.take(ticket.Seq); ok {
				text = render.Markdown(st)
			}
		}

		if pending.MessageID == 0 {
			b.replyMarkdown(chatID, text)
			return
		}
		edit := tgbotapi.NewEditMessageText(chatID, pending.MessageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Sending prediction result")
		}
	}()
}

func (b *bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Sending message")
	}
}

func (b *bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Sending message")
	}
}

func formText(s *session) string {
	s.mu.Lock()
	f := s.form
	s.mu.Unlock()

	var text strings.Builder
	text.WriteString("*Current Form*\n\n")
	text.WriteString(fmt.Sprintf("*Crop:* %s\n", f.Crop))
	text.WriteString(fmt.Sprintf("*Area:* %g ha\n", f.Area))
	text.WriteString(fmt.Sprintf("*Soil:* %s\n", f.SoilType))
	text.WriteString(fmt.Sprintf("*Rainfall:* %g mm\n", f.AnnualRainfall))
	text.WriteString(fmt.Sprintf("*Temperature:* %g°C\n", f.AvgTemperature))
	text.WriteString(fmt.Sprintf("*N / P / K:* %g / %g / %g kg/ha\n", f.Nitrogen, f.Phosphorus, f.Potassium))
	text.WriteString(fmt.Sprintf("*Backend:* %s\n", backend.Label(s.orch.Backend())))
	return text.String()
}
