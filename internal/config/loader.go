package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the bare environment variables the
// deployment environment sets. These are bound explicitly so they apply
// during Unmarshal without requiring the PARLEY_ prefix.
var envBindings = map[string]string{
	"telegram.bot_token":       "TELEGRAM_TOKEN",
	"llm.provider":             "LLM_PROVIDER",
	"llm.api_key":              "LLM_API_KEY",
	"llm.base_url":             "LLM_BASE_URL",
	"llm.model":                "LLM_MODEL_NAME",
	"memory.primary_url":       "PRIMARY_STORE_URL",
	"memory.primary_api_key":   "PRIMARY_STORE_API_KEY",
	"memory.window_limit":      "HISTORY_WINDOW_LIMIT",
	"memory.fallback_capacity": "FALLBACK_CAPACITY",
	"server.port":              "PORT",
}

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path uses the default
// location under the user's home directory.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".parley", "parley.json")
	}

	v := viper.New()
	v.SetEnvPrefix("PARLEY")
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// The config file is optional; the relay can run from environment
	// variables alone.
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	// Weak typing lets numeric settings arrive as environment strings
	// (HISTORY_WINDOW_LIMIT=10, PORT=5000).
	weaklyTyped := func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true }
	if err := v.Unmarshal(cfg, weaklyTyped); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".parley")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "parley.log")
	}

	return cfg, nil
}
