package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Telegram.BotToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Model = "gpt-4o-mini"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_PrimaryPairOptional(t *testing.T) {
	cfg := validConfig()
	cfg.Memory.PrimaryURL = "https://qdrant.example.com:6333"
	cfg.Memory.PrimaryAPIKey = "secret"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bot token", func(c *Config) { c.Telegram.BotToken = "" }},
		{"malformed bot token", func(c *Config) { c.Telegram.BotToken = "not-a-token" }},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "parrot" }},
		{"primary url without key", func(c *Config) { c.Memory.PrimaryURL = "https://x" }},
		{"primary key without url", func(c *Config) { c.Memory.PrimaryAPIKey = "secret" }},
		{"zero window", func(c *Config) { c.Memory.WindowLimit = 0 }},
		{"zero capacity", func(c *Config) { c.Memory.FallbackCapacity = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
