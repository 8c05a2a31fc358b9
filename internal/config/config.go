// Package config loads and validates the relay configuration from an
// optional JSON file plus environment variables.
package config

import (
	"time"

	"github.com/parleybot/parley/pkg/memory"
)

// Config represents the main Parley configuration.
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// LLM completion endpoint
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Conversation memory
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
}

// LLMConfig holds completion endpoint configuration. BaseURL points the
// openai provider at any OpenAI-compatible endpoint.
type LLMConfig struct {
	Provider     string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey       string  `json:"api_key" mapstructure:"api_key"`
	BaseURL      string  `json:"base_url" mapstructure:"base_url"`
	Model        string  `json:"model" mapstructure:"model"`
	SystemPrompt string  `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// MemoryConfig holds conversation memory configuration. PrimaryURL and
// PrimaryAPIKey must both be set to enable the primary store; otherwise
// the relay runs fallback-only.
type MemoryConfig struct {
	PrimaryURL       string `json:"primary_url" mapstructure:"primary_url"`
	PrimaryAPIKey    string `json:"primary_api_key" mapstructure:"primary_api_key"`
	Collection       string `json:"collection" mapstructure:"collection"`
	VectorDimension  int    `json:"vector_dimension" mapstructure:"vector_dimension"`
	WindowLimit      int    `json:"window_limit" mapstructure:"window_limit"`
	FallbackCapacity int    `json:"fallback_capacity" mapstructure:"fallback_capacity"`
	SweepSchedule    string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	SweepMaxIdle     string `json:"sweep_max_idle" mapstructure:"sweep_max_idle"` // Go duration string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultSystemPrompt is injected at prompt-assembly time; it is never
// stored in conversation memory.
const DefaultSystemPrompt = "You are a helpful Telegram bot."

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			SystemPrompt: DefaultSystemPrompt,
			MaxTokens:    1024,
		},
		Memory: MemoryConfig{
			Collection:       "chat_history",
			VectorDimension:  memory.DefaultVectorDimension,
			WindowLimit:      memory.DefaultWindowLimit,
			FallbackCapacity: memory.DefaultFallbackCapacity,
			SweepSchedule:    memory.DefaultSweepSchedule,
			SweepMaxIdle:     memory.DefaultSweepMaxIdle.String(),
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			RateLimitPerMinute: 100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// SweepMaxIdleDuration parses the sweep idle threshold, falling back to
// the default on a malformed value.
func (c *MemoryConfig) SweepMaxIdleDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepMaxIdle)
	if err != nil || d <= 0 {
		return memory.DefaultSweepMaxIdle
	}
	return d
}

// PrimaryConfigured reports whether both primary store credentials are
// present. Absence of either is a deliberate fallback-only mode, not an
// error.
func (c *MemoryConfig) PrimaryConfigured() bool {
	return c.PrimaryURL != "" && c.PrimaryAPIKey != ""
}
