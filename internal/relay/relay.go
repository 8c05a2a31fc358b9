// Package relay runs the message pipeline: fetch the conversation
// window, invoke the completion endpoint, record both turns.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleybot/parley/internal/config"
	"github.com/parleybot/parley/internal/observability"
	"github.com/parleybot/parley/pkg/llm"
	"github.com/parleybot/parley/pkg/memory"
	"github.com/rs/zerolog"
)

// Relay processes inbound chat messages. Memory failures never surface
// here; the only error Process can return comes from the completion
// call.
type Relay struct {
	memory   *memory.Manager
	provider llm.Provider
	llmCfg   config.LLMConfig
	logger   zerolog.Logger
}

// New creates a new relay.
func New(mem *memory.Manager, provider llm.Provider, llmCfg config.LLMConfig, logger zerolog.Logger) (*Relay, error) {
	if mem == nil {
		return nil, fmt.Errorf("memory manager is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("completion provider is required")
	}
	if llmCfg.SystemPrompt == "" {
		llmCfg.SystemPrompt = config.DefaultSystemPrompt
	}

	return &Relay{
		memory:   mem,
		provider: provider,
		llmCfg:   llmCfg,
		logger:   logger.With().Str("component", "relay").Logger(),
	}, nil
}

// Process generates a reply for one inbound message. The context window
// read and the two appends are best-effort by construction; a completion
// failure is returned to the caller, which owns the user-facing error
// text.
func (r *Relay) Process(ctx context.Context, chatID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("message text is empty")
	}

	window := r.memory.FetchWindow(ctx, chatID, 0)

	start := time.Now()
	resp, err := r.provider.Complete(ctx, llm.Request{
		Model:        r.llmCfg.Model,
		SystemPrompt: r.llmCfg.SystemPrompt,
		Turns:        window,
		UserMessage:  text,
		Temperature:  r.llmCfg.Temperature,
		MaxTokens:    r.llmCfg.MaxTokens,
	})
	if err != nil {
		observability.RecordCompletion(r.provider.Name(), "error", time.Since(start))
		return "", fmt.Errorf("completion call failed: %w", err)
	}
	observability.RecordCompletion(r.provider.Name(), "ok", time.Since(start))

	// Record the exchange only after a successful completion so a failed
	// request does not leave a userless turn in history.
	if err := r.memory.Append(ctx, chatID, memory.RoleUser, text); err != nil {
		r.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to record user turn")
	}
	if err := r.memory.Append(ctx, chatID, memory.RoleAssistant, resp.Content); err != nil {
		r.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to record assistant turn")
	}

	r.logger.Debug().
		Str("chat_id", chatID).
		Int("window", len(window)).
		Msg("Message processed")

	return resp.Content, nil
}

// Clear erases the chat's conversation history.
func (r *Relay) Clear(ctx context.Context, chatID string) {
	r.memory.Clear(ctx, chatID)
}
