package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tathienbao/signal-bot/internal/alerting"
)

// TickEvent asks the engine to run one pass over all symbols.
type TickEvent struct {
	ID string
	At time.Time
}

// Start launches the ticker and the tick consumer. The first tick fires
// immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.logger.Info("starting engine",
		"symbols", e.cfg.Symbols,
		"tick_interval", e.cfg.TickInterval,
		"fetcher", e.fetcher.Name(),
		"indicators", e.indicators.Name(),
		"evaluator", e.evaluator.Name(),
	)

	ticks := make(chan TickEvent, 1)

	e.wg.Add(2)
	go e.tickerLoop(ctx, ticks)
	go e.consumeLoop(ctx, ticks)

	if err := e.ops.AlertEvent(ctx, alerting.EventBotStarted, "Signal engine started",
		"symbols", len(e.cfg.Symbols),
		"tick_interval", e.cfg.TickInterval.String(),
	); err != nil {
		e.logger.Warn("failed to send start alert", "err", err)
	}
	return nil
}

// tickerLoop emits tick events. A tick that cannot be queued because the
// previous one is still pending is dropped.
func (e *Engine) tickerLoop(ctx context.Context, ticks chan<- TickEvent) {
	defer e.wg.Done()
	defer close(ticks)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	emit := func(at time.Time) {
		select {
		case ticks <- TickEvent{ID: uuid.NewString(), At: at}:
		default:
			e.mu.Lock()
			e.dropped++
			e.mu.Unlock()
			e.logger.Warn("tick dropped, previous tick still pending")
		}
	}

	emit(e.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			emit(e.now())
		}
	}
}

// consumeLoop runs queued ticks one at a time. Ticks still queued after
// Stop or cancellation are drained without running.
func (e *Engine) consumeLoop(ctx context.Context, ticks <-chan TickEvent) {
	defer e.wg.Done()

	for ev := range ticks {
		if e.stopping(ctx) {
			continue
		}
		e.runTick(ctx, ev)
	}
	e.logger.Info("tick loop stopped")
}

func (e *Engine) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Stop stops the scheduler and waits for an in-flight tick to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.logger.Info("stopping engine")

	close(e.done)
	e.wg.Wait()

	if err := e.ops.AlertEvent(ctx, alerting.EventBotStopped, "Signal engine stopped"); err != nil {
		e.logger.Warn("failed to send stop alert", "err", err)
	}

	e.logger.Info("engine stopped")
	return nil
}

// IsRunning returns true if the scheduler is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// DroppedTicks returns how many ticks were dropped because the previous
// one was still pending.
func (e *Engine) DroppedTicks() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dropped
}
