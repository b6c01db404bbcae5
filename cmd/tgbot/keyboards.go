package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/YieldPredictor/internal/backend"
)

// mainMenuKeyboard returns the main menu keyboard
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Select Crop"),
			tgbotapi.NewKeyboardButton("Select Soil"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Show Form"),
			tgbotapi.NewKeyboardButton("Select Backend"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Run Prediction"),
		),
	)
}

func backToMenuRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("← Back to Main Menu", "main_menu"))
}

// sendChoiceMenu displays options as inline buttons, three per row
func (b *bot) sendChoiceMenu(chatID int64, prompt, prefix string, options []string) {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, option := range options {
		if i%3 == 0 && i > 0 {
			keyboard = append(keyboard, row)
			row = []tgbotapi.InlineKeyboardButton{}
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(option, prefix+option))
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}
	keyboard = append(keyboard, backToMenuRow())

	b.reply(chatID, prompt, tgbotapi.NewInlineKeyboardMarkup(keyboard...))
}

// sendBackendMenu lists the backends, marking the active one
func (b *bot) sendBackendMenu(chatID int64, s *session) {
	active := s.orch.Backend()

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, name := range b.registry.Names() {
		label := backend.Label(name)
		if name == active {
			label = "✅ " + label
		}
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "backend_"+name)))
	}
	keyboard = append(keyboard, backToMenuRow())

	b.reply(chatID, "Select a prediction backend:", tgbotapi.NewInlineKeyboardMarkup(keyboard...))
}
