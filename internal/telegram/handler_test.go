package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	err    error
	chatID int64
	text   string
	sent   int
}

func (s *fakeSender) Send(chatID int64, text string) error {
	s.sent++
	s.chatID = chatID
	s.text = text
	return s.err
}

type fakeResponder struct {
	reply     string
	err       error
	processed []string
	cleared   []string
}

func (r *fakeResponder) Process(ctx context.Context, chatID, text string) (string, error) {
	r.processed = append(r.processed, text)
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

func (r *fakeResponder) Clear(ctx context.Context, chatID string) {
	r.cleared = append(r.cleared, chatID)
}

func testHandler(t *testing.T, sender *fakeSender, relay *fakeResponder) *Handler {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	h, err := NewHandler(sender, relay, logger)
	require.NoError(t, err)
	return h
}

func updateBody(t *testing.T, chatID int64, text string) []byte {
	t.Helper()
	update := tgbotapi.Update{
		UpdateID: 42,
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
		},
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)
	return body
}

func TestNewHandler_Validation(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	h, err := NewHandler(nil, &fakeResponder{}, logger)
	assert.Error(t, err)
	assert.Nil(t, h)

	h, err = NewHandler(&fakeSender{}, nil, logger)
	assert.Error(t, err)
	assert.Nil(t, h)
}

func TestHandleUpdate_RepliesToTextMessage(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeResponder{reply: "hello there"}
	h := testHandler(t, sender, relay)

	err := h.HandleUpdate(context.Background(), updateBody(t, 12345, "hi"))
	require.NoError(t, err)

	assert.Equal(t, []string{"hi"}, relay.processed)
	assert.Equal(t, int64(12345), sender.chatID)
	assert.Equal(t, "hello there", sender.text)
}

func TestHandleUpdate_ProcessingFailureGetsFallbackReply(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeResponder{err: fmt.Errorf("completion call failed")}
	h := testHandler(t, sender, relay)

	err := h.HandleUpdate(context.Background(), updateBody(t, 12345, "hi"))
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, sender.text)
}

func TestHandleUpdate_ClearCommand(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeResponder{reply: "should not be used"}
	h := testHandler(t, sender, relay)

	err := h.HandleUpdate(context.Background(), updateBody(t, 777, "/clear"))
	require.NoError(t, err)

	assert.Equal(t, []string{"777"}, relay.cleared)
	assert.Empty(t, relay.processed)
	assert.Equal(t, clearedReply, sender.text)
}

func TestIsClearCommand(t *testing.T) {
	h := testHandler(t, &fakeSender{}, &fakeResponder{})

	tests := []struct {
		text string
		want bool
	}{
		{"/clear", true},
		{"  /clear  ", true},
		{"/clear please", true},
		{"/clearly wrong", false},
		{"/cleared", false},
		{"clear", false},
		{"", false},
		{"/clear@parleybot", false}, // no bot username known here
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, h.isClearCommand(tt.text))
		})
	}
}

type namedSender struct {
	fakeSender
}

func (s *namedSender) Username() string { return "parleybot" }

func TestIsClearCommand_AddressedToBot(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	sender := &namedSender{}
	h, err := NewHandler(sender, &fakeResponder{}, logger)
	require.NoError(t, err)

	assert.True(t, h.isClearCommand("/clear@parleybot"))
	assert.False(t, h.isClearCommand("/clear@otherbot"))
}

func TestHandleUpdate_IgnoresNonTextUpdates(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeResponder{reply: "hello"}
	h := testHandler(t, sender, relay)

	// Edited-message updates carry no Message field.
	err := h.HandleUpdate(context.Background(), []byte(`{"update_id": 7}`))
	require.NoError(t, err)
	assert.Zero(t, sender.sent)
	assert.Empty(t, relay.processed)
}

func TestHandleUpdate_IgnoresMessageWithoutChat(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeResponder{reply: "hello"}
	h := testHandler(t, sender, relay)

	// The endpoint is unauthenticated, so a crafted payload may carry a
	// text message with no chat. It must be ignored, not panic.
	err := h.HandleUpdate(context.Background(), []byte(`{"update_id":1,"message":{"text":"hi"}}`))
	require.NoError(t, err)
	assert.Zero(t, sender.sent)
	assert.Empty(t, relay.processed)
}

func TestHandleUpdate_MalformedBody(t *testing.T) {
	sender := &fakeSender{}
	relay := &fakeResponder{}
	h := testHandler(t, sender, relay)

	err := h.HandleUpdate(context.Background(), []byte("not json"))
	assert.Error(t, err)
	assert.Zero(t, sender.sent)
}

func TestHandleUpdate_DeliveryFailure(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("network down")}
	relay := &fakeResponder{reply: "hello"}
	h := testHandler(t, sender, relay)

	err := h.HandleUpdate(context.Background(), updateBody(t, 1, "hi"))
	assert.Error(t, err)
}
