package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tathienbao/signal-bot/internal/alerting"
	"github.com/tathienbao/signal-bot/internal/config"
	"github.com/tathienbao/signal-bot/internal/engine"
	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/observer"
	"github.com/tathienbao/signal-bot/internal/persistence"
	"github.com/tathienbao/signal-bot/internal/strategy"
)

// newLogger builds the process logger from the app config.
func newLogger(cfg config.AppConfig, w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig loads the config file and exits on failure.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openStore opens the feature store named in the config.
func openStore(cfg *config.Config) (*persistence.SQLiteStore, error) {
	store, err := persistence.NewSQLiteStore(cfg.Persistence.Path)
	if err != nil {
		return nil, fmt.Errorf("open feature store %s: %w", cfg.Persistence.Path, err)
	}
	return store, nil
}

// newRegistry builds the recipient registry, seeded with the configured chats.
func newRegistry(ctx context.Context, cfg *config.Config) (alerting.Registry, func() error, error) {
	if cfg.Registry.Type == "redis" {
		reg, err := alerting.NewRedisRegistry(ctx, cfg.RedisConfig())
		if err != nil {
			return nil, nil, err
		}
		for _, id := range cfg.Telegram.ChatIDs {
			if _, err := reg.Add(ctx, id); err != nil {
				_ = reg.Close()
				return nil, nil, fmt.Errorf("seed recipient %d: %w", id, err)
			}
		}
		return reg, reg.Close, nil
	}
	return alerting.NewMemoryRegistry(cfg.Telegram.ChatIDs...), func() error { return nil }, nil
}

// newEngine wires fetcher, indicators and the reversal rule into an engine.
// notifier receives fired signals only.
func newEngine(cfg *config.Config, store persistence.FeatureStore, notifier alerting.Alerter, logger *slog.Logger) (*engine.Engine, error) {
	fetcher, err := observer.New(cfg.ObserverConfig())
	if err != nil {
		return nil, err
	}

	indicators, err := indicator.New(cfg.Indicators.Backend, cfg.IndicatorParams())
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline configured",
		"provider", fetcher.Name(),
		"backend", indicators.Name(),
		"symbols", cfg.Market.Symbols,
		"interval", cfg.Market.Interval,
	)

	return engine.NewEngine(
		cfg.EngineConfig(),
		fetcher,
		indicators,
		strategy.NewReversal(cfg.ReversalConfig()),
		store,
		notifier,
		logger,
	)
}
