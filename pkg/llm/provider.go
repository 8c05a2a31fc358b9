// Package llm calls the language-model completion endpoint that turns a
// context window plus a new user message into a reply.
package llm

import (
	"context"
	"fmt"

	"github.com/parleybot/parley/pkg/memory"
)

// DefaultMaxTokens caps the reply size when no limit is configured.
const DefaultMaxTokens = 1024

// Provider is an LLM completion backend.
type Provider interface {
	// Complete generates a reply for the given request.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// Request contains the completion call parameters. Turns carry the
// conversation context in chronological order; UserMessage is the new
// inbound message and is appended after the window.
type Request struct {
	Model        string
	SystemPrompt string
	Turns        []memory.Turn
	UserMessage  string
	Temperature  float64
	MaxTokens    int
}

// Response contains the generated reply.
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Options selects and configures a provider.
type Options struct {
	Provider string // "openai" (default) or "anthropic"
	APIKey   string
	BaseURL  string // OpenAI-compatible endpoints only
}

// NewProvider creates a provider from options.
func NewProvider(opts Options) (Provider, error) {
	switch opts.Provider {
	case "", "openai":
		return NewOpenAIProvider(opts.APIKey, opts.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(opts.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}
}
