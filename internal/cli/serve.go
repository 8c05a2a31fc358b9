package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleybot/parley/internal/config"
	"github.com/parleybot/parley/internal/logger"
	"github.com/parleybot/parley/internal/relay"
	"github.com/parleybot/parley/internal/telegram"
	"github.com/parleybot/parley/pkg/llm"
	"github.com/parleybot/parley/pkg/memory"
	"github.com/parleybot/parley/pkg/webhook"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay server in the foreground. The server receives Telegram
webhook updates, generates completions, and records conversation history.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	mgr, fallback, err := buildMemory(cmd.Context(), cfg, zl, true)
	if err != nil {
		return err
	}

	sweeper, err := memory.NewSweeper(fallback, cfg.Memory.SweepSchedule, cfg.Memory.SweepMaxIdleDuration(), zl)
	if err != nil {
		return fmt.Errorf("failed to create sweeper: %w", err)
	}
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	provider, err := llm.NewProvider(llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create completion provider: %w", err)
	}

	bot, err := telegram.New(cfg.Telegram.BotToken, zl)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	rel, err := relay.New(mgr, provider, cfg.LLM, zl)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	handler, err := telegram.NewHandler(bot, rel, zl)
	if err != nil {
		return fmt.Errorf("failed to create update handler: %w", err)
	}

	server, err := webhook.NewServer(webhook.ServerOptions{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}, handler, mgr, zl)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	zl.Info().
		Str("provider", provider.Name()).
		Str("model", cfg.LLM.Model).
		Str("bot", bot.Username()).
		Msg("Parley started")

	select {
	case <-ctx.Done():
		zl.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if err := server.Stop(); err != nil {
		zl.Error().Err(err).Msg("Failed to stop webhook server")
	}
	if err := sweeper.Stop(); err != nil {
		zl.Error().Err(err).Msg("Failed to stop sweeper")
	}

	return nil
}

// loadConfig loads configuration honoring the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// buildMemory assembles the dual-backend memory manager. A primary store
// that cannot be prepared is logged and skipped so the relay still comes
// up in fallback-only mode.
func buildMemory(ctx context.Context, cfg *config.Config, zl zerolog.Logger, ensureSchema bool) (*memory.Manager, *memory.FallbackStore, error) {
	fallback := memory.NewFallbackStore(cfg.Memory.FallbackCapacity)

	var primary memory.PrimaryStore
	if cfg.Memory.PrimaryConfigured() {
		store, err := memory.NewQdrantStore(memory.QdrantConfig{
			URL:        cfg.Memory.PrimaryURL,
			APIKey:     cfg.Memory.PrimaryAPIKey,
			Collection: cfg.Memory.Collection,
			Dimension:  cfg.Memory.VectorDimension,
			Logger:     zl,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create primary store: %w", err)
		}

		if ensureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				zl.Error().Err(err).Msg("Primary store schema setup failed, running fallback-only")
			} else {
				primary = store
			}
		} else {
			primary = store
		}
	}

	mgr, err := memory.NewManager(memory.ManagerConfig{
		Primary:     primary,
		Fallback:    fallback,
		WindowLimit: cfg.Memory.WindowLimit,
		Logger:      zl,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create memory manager: %w", err)
	}

	return mgr, fallback, nil
}
