package config

import (
	"fmt"
	"regexp"
)

// telegramTokenPattern matches the <bot_id>:<token> shape Telegram
// issues, e.g. 123456789:ABCdefGHIjklMNOpqrsTUVwxyz.
var telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate checks that the configuration can run the relay. It returns
// the first problem found.
func Validate(cfg *Config) error {
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required (TELEGRAM_TOKEN)")
	}
	if !telegramTokenPattern.MatchString(cfg.Telegram.BotToken) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required (LLM_API_KEY)")
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model name is required (LLM_MODEL_NAME)")
	}
	switch cfg.LLM.Provider {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported LLM provider %q", cfg.LLM.Provider)
	}

	// Primary store credentials come as a pair; exactly one of them set
	// is almost certainly a deployment mistake rather than a deliberate
	// fallback-only mode.
	if (cfg.Memory.PrimaryURL == "") != (cfg.Memory.PrimaryAPIKey == "") {
		return fmt.Errorf("PRIMARY_STORE_URL and PRIMARY_STORE_API_KEY must be set together")
	}

	if cfg.Memory.WindowLimit <= 0 {
		return fmt.Errorf("history window limit must be positive, got %d", cfg.Memory.WindowLimit)
	}
	if cfg.Memory.FallbackCapacity <= 0 {
		return fmt.Errorf("fallback capacity must be positive, got %d", cfg.Memory.FallbackCapacity)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	return nil
}
