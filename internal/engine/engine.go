// Package engine runs the scan pipeline for every tracked symbol on each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tathienbao/signal-bot/internal/alerting"
	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/metrics"
	"github.com/tathienbao/signal-bot/internal/observer"
	"github.com/tathienbao/signal-bot/internal/persistence"
	"github.com/tathienbao/signal-bot/internal/strategy"
	"github.com/tathienbao/signal-bot/internal/types"
)

// Config holds engine configuration.
type Config struct {
	Symbols        []string
	Interval       time.Duration // bar size
	Lookback       time.Duration // history requested per fetch
	MinBars        int
	TickInterval   time.Duration
	MaxConcurrency int
	SymbolTimeout  time.Duration
	// SkipDuplicateBars skips a symbol when its latest bar is not newer
	// than the last recorded snapshot.
	SkipDuplicateBars bool
}

// DefaultConfig returns default engine config.
func DefaultConfig() Config {
	return Config{
		Symbols:           []string{"EURUSD=X", "GBPUSD=X", "USDJPY=X"},
		Interval:          time.Minute,
		Lookback:          24 * time.Hour,
		MinBars:           50,
		TickInterval:      2 * time.Minute,
		MaxConcurrency:    4,
		SymbolTimeout:     60 * time.Second,
		SkipDuplicateBars: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case len(c.Symbols) == 0:
		return fmt.Errorf("%w: no symbols", types.ErrInvalidConfig)
	case c.Interval <= 0 || c.Lookback < c.Interval:
		return fmt.Errorf("%w: lookback %s must cover interval %s", types.ErrInvalidConfig, c.Lookback, c.Interval)
	case c.MinBars < 1:
		return fmt.Errorf("%w: min bars %d", types.ErrInvalidConfig, c.MinBars)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval %s", types.ErrInvalidConfig, c.TickInterval)
	}
	return nil
}

// Engine coordinates fetch, indicators, persistence, evaluation and
// notification for each symbol.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	fetcher    observer.Fetcher
	indicators indicator.Engine
	evaluator  strategy.Evaluator
	store      persistence.FeatureStore
	notifier   alerting.Alerter
	ops        *alerting.MultiAlerter
	recorder   *metrics.Recorder
	now        func() time.Time

	// Per-symbol state, fixed at construction.
	locks map[string]*sync.Mutex

	barMu   sync.Mutex
	lastBar map[string]time.Time
	loaded  map[string]bool

	// Serializes ticks, whether scheduled or run directly.
	tickMu sync.Mutex

	mu         sync.RWMutex
	running    bool
	lastReport TickReport
	dropped    int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewEngine creates a new pipeline engine. notifier receives fired
// signals only and may be nil. Operational alerts (lifecycle, failed
// symbols and ticks) go to a console channel and never reach recipients.
func NewEngine(
	cfg Config,
	fetcher observer.Fetcher,
	indicators indicator.Engine,
	evaluator strategy.Evaluator,
	store persistence.FeatureStore,
	notifier alerting.Alerter,
	logger *slog.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.SymbolTimeout <= 0 {
		cfg.SymbolTimeout = DefaultConfig().SymbolTimeout
	}

	locks := make(map[string]*sync.Mutex, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		locks[s] = &sync.Mutex{}
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher,
		indicators: indicators,
		evaluator:  evaluator,
		store:      store,
		notifier:   notifier,
		ops:        alerting.NewMultiAlerter(logger, alerting.NewConsoleAlerter(logger)),
		recorder:   metrics.NewRecorder(),
		now:        time.Now,
		locks:      locks,
		lastBar:    make(map[string]time.Time),
		loaded:     make(map[string]bool),
	}, nil
}

// RunOnce runs a single tick over all symbols and returns its report.
func (e *Engine) RunOnce(ctx context.Context) TickReport {
	return e.runTick(ctx, TickEvent{ID: uuid.NewString(), At: e.now()})
}

func (e *Engine) runTick(ctx context.Context, ev TickEvent) TickReport {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	report := TickReport{
		TickID:   ev.ID,
		Started:  ev.At,
		Outcomes: make([]Outcome, len(e.cfg.Symbols)),
	}

	sem := make(chan struct{}, e.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for i, symbol := range e.cfg.Symbols {
		i, symbol := i, symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Outcomes[i] = e.processSymbol(ctx, ev.ID, symbol)
		}()
	}
	wg.Wait()

	report.Duration = time.Since(start)
	e.recorder.RecordTick(report.Duration)
	e.recorder.RecordHeartbeat()

	for _, o := range report.Outcomes {
		e.logOutcome(ctx, o)
	}
	e.logger.Info("tick completed",
		"tick_id", ev.ID,
		"symbols", len(report.Outcomes),
		"ok", report.Count(StatusOK),
		"signals", report.Count(StatusSignal),
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
		"duration", report.Duration,
	)

	if report.AllFailed() {
		if err := e.ops.AlertEvent(ctx, alerting.EventTickFailed,
			"Every symbol failed this tick",
			"tick_id", ev.ID,
			"error", report.Outcomes[0].Err,
		); err != nil {
			e.logger.Warn("failed to send tick failure alert", "err", err)
		}
	}

	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	return report
}

// processSymbol runs the pipeline for one symbol. It never panics and
// never returns early without a populated Outcome.
func (e *Engine) processSymbol(ctx context.Context, tickID, symbol string) (out Outcome) {
	start := time.Now()
	out = Outcome{TickID: tickID, Symbol: symbol}
	stage := StageLock

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Stage = stage
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		out.Duration = time.Since(start)
	}()

	stop := func(status Status, err error) Outcome {
		out.Status = status
		out.Stage = stage
		out.Err = err
		return out
	}

	lock := e.locks[symbol]
	if !lock.TryLock() {
		return stop(StatusSkipped, ErrSymbolBusy)
	}
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SymbolTimeout)
	defer cancel()

	stage = StageFetch
	timer := metrics.NewTimer()
	bars, err := e.fetcher.Fetch(ctx, observer.Request{
		Symbol:   symbol,
		Interval: e.cfg.Interval,
		Lookback: e.cfg.Lookback,
	})
	timer.ObserveFetch(e.fetcher.Name())
	if err != nil {
		return stop(StatusSkipped, err)
	}
	if err := observer.RequireBars(bars, e.cfg.MinBars); err != nil {
		return stop(StatusSkipped, err)
	}

	stage = StageIndicators
	timer = metrics.NewTimer()
	row, err := indicator.Latest(e.indicators, bars)
	timer.ObserveIndicator(e.indicators.Name())
	if err != nil {
		return stop(StatusSkipped, err)
	}

	if e.cfg.SkipDuplicateBars {
		stage = StageDedupe
		if last, ok := e.lastRecorded(ctx, symbol); ok && !row.Timestamp.After(last) {
			return stop(StatusSkipped, fmt.Errorf("%w: %s", ErrDuplicateBar, row.Timestamp.Format(time.RFC3339)))
		}
	}

	stage = StagePersistSnapshot
	snap := row.Snapshot(symbol)
	persistStart := time.Now()
	id, err := e.store.RecordSnapshot(ctx, snap)
	e.recorder.RecordPersistLatency(time.Since(persistStart))
	if err != nil {
		return stop(StatusFailed, err)
	}
	snap.ID = id
	out.Snapshot = &snap
	e.recorder.RecordSnapshot(symbol)
	e.markRecorded(symbol, row.Timestamp)

	stage = StageEvaluate
	decision := e.evaluator.Evaluate(row)
	if !decision.Fired() {
		out.Status = StatusOK
		return out
	}

	stage = StagePersistSignal
	sig := decision.SignalAt(symbol, e.now())
	id, err = e.store.RecordSignal(ctx, sig)
	if err != nil {
		return stop(StatusFailed, err)
	}
	sig.ID = id
	out.Signal = &sig
	out.Status = StatusSignal
	e.recorder.RecordSignal(symbol, sig.Direction.String())

	if e.notifier != nil {
		stage = StageNotify
		out.DeliveryErr = alerting.NotifySignal(ctx, e.notifier, sig)
		e.recorder.RecordNotification(out.DeliveryErr == nil)
	}
	return out
}

// lastRecorded returns the newest recorded bar time for symbol, loading it
// from the store on first use. Store errors disable the guard for this
// call only.
func (e *Engine) lastRecorded(ctx context.Context, symbol string) (time.Time, bool) {
	e.barMu.Lock()
	defer e.barMu.Unlock()

	if !e.loaded[symbol] {
		t, ok, err := e.store.LastSnapshotTime(ctx, symbol)
		if err != nil {
			e.logger.Warn("could not load last snapshot time", "symbol", symbol, "err", err)
			return time.Time{}, false
		}
		e.loaded[symbol] = true
		if ok {
			e.lastBar[symbol] = t
		}
	}
	t, ok := e.lastBar[symbol]
	return t, ok
}

func (e *Engine) markRecorded(symbol string, t time.Time) {
	e.barMu.Lock()
	defer e.barMu.Unlock()
	if t.After(e.lastBar[symbol]) {
		e.lastBar[symbol] = t
	}
}

// OpsAlerter returns the operational alert channel. Callers may add
// channels to it; it is never wired to signal recipients by the engine.
func (e *Engine) OpsAlerter() *alerting.MultiAlerter {
	return e.ops
}

func (e *Engine) logOutcome(ctx context.Context, o Outcome) {
	attrs := []any{
		"tick_id", o.TickID,
		"symbol", o.Symbol,
		"status", string(o.Status),
		"duration", o.Duration,
	}
	if o.Stage != "" {
		attrs = append(attrs, "stage", string(o.Stage))
	}
	if o.Err != nil {
		attrs = append(attrs, "err", o.Err)
	}

	failedStage := ""
	switch o.Status {
	case StatusFailed:
		failedStage = string(o.Stage)
		e.logger.Error("symbol failed", attrs...)
		e.recorder.RecordError(string(o.Stage))
		e.alertFailure(ctx, o)
	case StatusSkipped:
		failedStage = string(o.Stage)
		e.logger.Info("symbol skipped", attrs...)
	case StatusSignal:
		attrs = append(attrs,
			"direction", o.Signal.Direction.String(),
			"price", o.Signal.EntryPrice,
			"signal_id", o.Signal.ID,
		)
		if o.DeliveryErr != nil {
			attrs = append(attrs, "delivery_err", o.DeliveryErr)
			e.logger.Warn("signal persisted, delivery incomplete", attrs...)
		} else {
			e.logger.Info("signal fired", attrs...)
		}
	default:
		e.logger.Debug("symbol processed", attrs...)
	}
	e.recorder.RecordSymbolOutcome(o.Symbol, string(o.Status), failedStage)
}

func (e *Engine) alertFailure(ctx context.Context, o Outcome) {
	event := alerting.EventSymbolFailed
	if o.Stage == StagePersistSnapshot || o.Stage == StagePersistSignal {
		event = alerting.EventPersistenceFailed
	}
	if err := e.ops.AlertEvent(ctx, event, "Symbol failed at "+string(o.Stage),
		"tick_id", o.TickID,
		"symbol", o.Symbol,
		"error", o.Err,
	); err != nil {
		e.logger.Warn("failed to send symbol failure alert", "err", err)
	}
}

// LastReport returns the report of the most recent tick. The zero report
// is returned before the first tick.
func (e *Engine) LastReport() TickReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReport
}

// LastTickTime returns when the most recent tick started.
func (e *Engine) LastTickTime() time.Time {
	return e.LastReport().Started
}

// Symbols returns the tracked symbols.
func (e *Engine) Symbols() []string {
	return append([]string(nil), e.cfg.Symbols...)
}
