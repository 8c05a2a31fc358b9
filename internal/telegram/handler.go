package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/parleybot/parley/internal/observability"
	"github.com/rs/zerolog"
)

// fallbackReply is sent when processing fails; the real error stays in
// the logs.
const fallbackReply = "Sorry, I encountered an error processing your request."

// clearedReply confirms a /clear command.
const clearedReply = "Conversation history cleared."

// Sender delivers outbound messages to the platform.
type Sender interface {
	Send(chatID int64, text string) error
}

// Responder generates a reply for an inbound message.
type Responder interface {
	Process(ctx context.Context, chatID, text string) (string, error)
	Clear(ctx context.Context, chatID string)
}

// Handler processes Telegram webhook updates.
type Handler struct {
	sender      Sender
	relay       Responder
	botUsername string
	logger      zerolog.Logger
}

// NewHandler creates a new update handler.
func NewHandler(sender Sender, relay Responder, logger zerolog.Logger) (*Handler, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if relay == nil {
		return nil, fmt.Errorf("responder is required")
	}

	h := &Handler{
		sender: sender,
		relay:  relay,
		logger: logger.With().Str("component", "handler").Logger(),
	}

	// Group chats address commands as /clear@<botname>.
	if named, ok := sender.(interface{ Username() string }); ok {
		h.botUsername = named.Username()
	}

	return h, nil
}

// HandleUpdate processes one webhook update payload. Updates without a
// text message are acknowledged and ignored. Returned errors concern
// outbound delivery only; processing failures are answered with the
// fallback reply so the user is never left hanging.
func (h *Handler) HandleUpdate(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to parse update: %w", err)
	}

	// The webhook route is unauthenticated, so the payload cannot be
	// trusted to carry a chat; an update without one is ignorable, not
	// an error.
	if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
		h.logger.Debug().Int("update_id", update.UpdateID).Msg("Ignoring non-text update")
		return nil
	}

	chatID := update.Message.Chat.ID
	chatKey := strconv.FormatInt(chatID, 10)
	text := update.Message.Text

	observability.RecordMessageReceived()
	h.logger.Debug().
		Int64("chat_id", chatID).
		Int("update_id", update.UpdateID).
		Msg("Message received")

	reply := h.dispatch(ctx, chatKey, text)

	if err := h.sender.Send(chatID, reply); err != nil {
		observability.RecordReplyFailed()
		return fmt.Errorf("failed to deliver reply: %w", err)
	}
	observability.RecordMessageSent()
	return nil
}

// dispatch routes commands and plain messages and always produces a
// user-facing reply.
func (h *Handler) dispatch(ctx context.Context, chatKey, text string) string {
	if h.isClearCommand(text) {
		h.relay.Clear(ctx, chatKey)
		return clearedReply
	}

	reply, err := h.relay.Process(ctx, chatKey, text)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("chat_id", chatKey).
			Msg("Failed to process message")
		return fallbackReply
	}
	return reply
}

// isClearCommand matches the /clear command token exactly, including the
// /clear@<botname> form used in group chats. Messages that merely start
// with the letters ("/clearly...") are ordinary text.
func (h *Handler) isClearCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "/clear":
		return true
	case "/clear@" + h.botUsername:
		return h.botUsername != ""
	}
	return false
}
