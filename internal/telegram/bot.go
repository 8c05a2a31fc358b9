// Package telegram adapts the relay to the Telegram Bot API: parsing
// webhook updates inbound and delivering replies outbound.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Bot wraps the Telegram Bot API client for outbound delivery.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger zerolog.Logger
}

// New creates a new bot instance and authenticates against the API.
func New(token string, logger zerolog.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := &Bot{
		api:    api,
		logger: logger.With().Str("component", "telegram").Logger(),
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// Send delivers a text message to the chat.
func (b *Bot) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Username returns the authenticated bot username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}
