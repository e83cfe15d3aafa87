// Package main is the entry point for the signal bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/moznion/go-optional"

	"github.com/tathienbao/signal-bot/internal/alerting"
	"github.com/tathienbao/signal-bot/internal/command"
	"github.com/tathienbao/signal-bot/internal/config"
	"github.com/tathienbao/signal-bot/internal/engine"
	"github.com/tathienbao/signal-bot/internal/export"
	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/metrics"
	"github.com/tathienbao/signal-bot/internal/observer"
	"github.com/tathienbao/signal-bot/internal/stats"
	"github.com/tathienbao/signal-bot/internal/strategy"
	"github.com/tathienbao/signal-bot/internal/telegram"
	"github.com/tathienbao/signal-bot/internal/types"
	"github.com/tathienbao/signal-bot/internal/ui"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "scan":
		cmdScan(os.Args[2:])
	case "chart":
		cmdChart(os.Args[2:])
	case "stats":
		cmdStats(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "label":
		cmdLabel(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Signal Bot - Binary Options Reversal Signals with ML Feature Capture

Usage:
  signal-bot <command> [options]

Commands:
  run        Start the scheduler, command listener and metrics server
  scan       Run a single tick over all symbols and print the outcomes
  chart      Draw recent bars and indicators for one symbol
  stats      Print aggregate signal statistics
  export     Write features and signals to Parquet files
  label      Record the result of a signal
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  signal-bot run --config config.yaml
  signal-bot scan --config config.yaml --verbose
  signal-bot chart --config config.yaml --symbol GBPUSD=X
  signal-bot export --config config.yaml --out data/
  signal-bot label --config config.yaml --id 42 --result win --pl 0.85

Use "signal-bot <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("signal-bot version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	ec := cfg.EngineConfig()

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Symbols: %v\n", cfg.Market.Symbols)
	fmt.Printf("  Provider: %s\n", cfg.Source.Provider)
	fmt.Printf("  Bars: %s over %s (min %d)\n", ec.Interval, ec.Lookback, ec.MinBars)
	fmt.Printf("  Indicator backend: %s (warmup %d bars)\n", cfg.Indicators.Backend, cfg.IndicatorParams().Warmup())
	fmt.Printf("  Tick interval: %s\n", ec.TickInterval)
	fmt.Printf("  Feature store: %s\n", cfg.Persistence.Path)
	fmt.Printf("  Telegram: %t (register on /start: %t)\n", cfg.Telegram.Enabled, cfg.RegisterOnStart())
}

func cmdScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := newLogger(cfg.App, os.Stderr, *verbose)
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	eng, err := newEngine(cfg, store, alerting.NewConsoleAlerter(logger), logger)
	if err != nil {
		slog.Error("failed to build engine", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := eng.RunOnce(ctx)
	printReport(report)
	if report.AllFailed() {
		os.Exit(1)
	}
}

func printReport(r engine.TickReport) {
	fmt.Printf("\n=== TICK %s (%s) ===\n", r.TickID, r.Duration.Round(time.Millisecond))
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%-10s %-8s", o.Symbol, o.Status)
		if o.Snapshot != nil {
			line += fmt.Sprintf(" close=%.5f rsi2=%.1f stoch=%.1f vol_ratio=%.2f",
				o.Snapshot.Close, o.Snapshot.RSI2, o.Snapshot.StochK, o.Snapshot.VolumeRatio())
		}
		if o.Signal != nil {
			line += " signal=" + o.Signal.Direction.String()
		}
		if o.Err != nil {
			line += fmt.Sprintf(" stage=%s err=%v", o.Stage, o.Err)
		}
		if o.DeliveryErr != nil {
			line += fmt.Sprintf(" delivery_err=%v", o.DeliveryErr)
		}
		fmt.Println(line)
	}
	fmt.Printf("\nok=%d signal=%d skipped=%d failed=%d\n",
		r.Count(engine.StatusOK), r.Count(engine.StatusSignal),
		r.Count(engine.StatusSkipped), r.Count(engine.StatusFailed))
}

func cmdChart(args []string) {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	symbol := fs.String("symbol", "", "Symbol to draw (default: first configured symbol)")
	height := fs.Int("height", 12, "Chart height in rows")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *symbol == "" {
		*symbol = cfg.Market.Symbols[0]
	}

	fetcher, err := observer.New(cfg.ObserverConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	indicators, err := indicator.New(cfg.Indicators.Backend, cfg.IndicatorParams())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ec := cfg.EngineConfig()
	bars, err := fetcher.Fetch(context.Background(), observer.Request{
		Symbol:   *symbol,
		Interval: ec.Interval,
		Lookback: ec.Lookback,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}

	// An undefined latest row is still drawn; the summary says so.
	row, err := indicator.Latest(indicators, bars)
	if err != nil && !errors.Is(err, types.ErrIndicatorUndefined) {
		fmt.Fprintf(os.Stderr, "Indicators failed: %v\n", err)
		os.Exit(1)
	}
	decision := strategy.NewReversal(cfg.ReversalConfig()).Evaluate(row)

	chart := ui.NewChart(os.Stdout)
	chart.Height = *height
	if err := chart.Write(os.Stdout, *symbol, bars, row, decision.Direction); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	text, err := stats.NewReporter(store, cfg.Market.Symbols).StatsText(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(text)
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	outDir := fs.String("out", ".", "Directory for the Parquet files")
	symbol := fs.String("symbol", "", "Only export this symbol")
	limit := fs.Int("limit", 0, "Maximum rows per file (0 = all)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res, err := export.Export(context.Background(), store, *outDir, export.Filter{Symbol: *symbol, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d snapshots to %s\n", res.Snapshots, res.SnapshotsPath)
	fmt.Printf("Wrote %d signals to %s\n", res.Signals, res.SignalsPath)
}

func cmdLabel(args []string) {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	id := fs.Int64("id", 0, "Signal ID (required)")
	result := fs.String("result", "", "Result: win, loss or unknown (required)")
	pl := fs.String("pl", "", "Profit/loss of the trade (optional)")
	fs.Parse(args)

	if *id <= 0 || *result == "" {
		fmt.Fprintln(os.Stderr, "Error: --id and --result are required")
		fs.Usage()
		os.Exit(1)
	}

	res, err := types.ParseResult(*result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	profit := optional.None[float64]()
	if *pl != "" {
		v, err := strconv.ParseFloat(*pl, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --pl %q\n", *pl)
			os.Exit(1)
		}
		profit = optional.Some(v)
	}

	cfg := loadConfig(*configPath)
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.LabelSignal(context.Background(), *id, res, profit); err != nil {
		fmt.Fprintf(os.Stderr, "Label failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signal %d labeled %s\n", *id, res)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := newLogger(cfg.App, os.Stdout, *verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.SetBuildInfo(Version, GitCommit, BuildTime)

	slog.Info("signal-bot starting",
		"version", Version,
		"symbols", cfg.Market.Symbols,
		"provider", cfg.Source.Provider,
		"store", cfg.Persistence.Path,
	)

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}

	registry, closeRegistry, err := newRegistry(ctx, cfg)
	if err != nil {
		slog.Error("failed to open recipient registry", "err", err)
		_ = store.Close()
		os.Exit(1)
	}

	// Signals only. The engine keeps operational alerts in the log.
	notifier := alerting.NewMultiAlerter(logger, alerting.NewConsoleAlerter(logger))

	var poller *command.Poller
	if cfg.Telegram.Enabled {
		client, err := telegram.New(cfg.TelegramClientConfig(), logger)
		if err != nil {
			slog.Error("failed to create telegram client", "err", err)
			_ = store.Close()
			os.Exit(1)
		}
		notifier.AddAlerter(alerting.NewBroadcaster(client, registry, logger))

		handler := command.NewHandler(registry, stats.NewReporter(store, cfg.Market.Symbols), logger)
		handler.RegisterOnStart = cfg.RegisterOnStart()
		poller = command.NewPoller(client, client, handler, cfg.PollTimeout(), logger)
	} else {
		slog.Warn("telegram disabled, signals are only logged")
	}

	eng, err := newEngine(cfg, store, notifier, logger)
	if err != nil {
		slog.Error("failed to build engine", "err", err)
		_ = store.Close()
		os.Exit(1)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.MetricsServerConfig(), logger)
		metricsServer.RegisterHealthCheck("store", metrics.PingCheck(store, 2*time.Second))
		metricsServer.RegisterHealthCheck("scheduler", metrics.StalenessCheck(eng.LastTickTime, 3*cfg.EngineConfig().TickInterval))
		if err := metricsServer.Start(); err != nil {
			slog.Error("failed to start metrics server", "err", err)
		}
	}

	if err := eng.Start(ctx); err != nil {
		slog.Error("failed to start engine", "err", err)
		_ = store.Close()
		os.Exit(1)
	}

	pollDone := make(chan struct{})
	if poller != nil {
		go func() {
			defer close(pollDone)
			if err := poller.Run(ctx); err != nil {
				slog.Error("command poller stopped", "err", err)
			}
		}()
	} else {
		close(pollDone)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := shutdown(shutdownCtx, cfg, eng, pollDone, metricsServer, closeRegistry, store); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	slog.Info("signal-bot shutdown complete")
}

func shutdown(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	pollDone <-chan struct{},
	metricsServer *metrics.Server,
	closeRegistry func() error,
	store interface{ Close() error },
) error {
	slog.Info("starting graceful shutdown",
		"timeout", cfg.ShutdownTimeout(),
	)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"stop scheduler", func() error {
			return eng.Stop(ctx)
		}},
		{"stop command poller", func() error {
			select {
			case <-pollDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		{"stop metrics server", func() error {
			if metricsServer == nil {
				return nil
			}
			return metricsServer.Shutdown(ctx)
		}},
		{"close registry", closeRegistry},
		{"close store", store.Close},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout during: %s", step.name)
		default:
			slog.Debug("shutdown step", "step", step.name)
			if err := step.fn(); err != nil {
				slog.Warn("shutdown step failed", "step", step.name, "err", err)
			}
		}
	}

	return nil
}
