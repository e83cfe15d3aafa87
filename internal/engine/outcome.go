package engine

import (
	"errors"
	"time"

	"github.com/tathienbao/signal-bot/internal/types"
)

// Status is how one symbol's tick ended.
type Status string

const (
	// StatusOK means the snapshot was persisted and no signal fired.
	StatusOK Status = "ok"
	// StatusSignal means the snapshot and a signal were persisted.
	StatusSignal Status = "signal"
	// StatusSkipped means nothing was persisted for a recoverable reason.
	StatusSkipped Status = "skipped"
	// StatusFailed means a write failed or the symbol's processing panicked.
	StatusFailed Status = "failed"
)

// Stage names a step of the per-symbol pipeline.
type Stage string

const (
	StageLock            Stage = "lock"
	StageFetch           Stage = "fetch"
	StageIndicators      Stage = "indicators"
	StageDedupe          Stage = "dedupe"
	StagePersistSnapshot Stage = "persist_snapshot"
	StageEvaluate        Stage = "evaluate"
	StagePersistSignal   Stage = "persist_signal"
	StageNotify          Stage = "notify"
)

var (
	// ErrSymbolBusy is reported when a symbol is still being processed by
	// an earlier tick.
	ErrSymbolBusy = errors.New("symbol tick already in progress")
	// ErrDuplicateBar is reported when the latest bar was already recorded.
	ErrDuplicateBar = errors.New("latest bar already recorded")
	// ErrPanic wraps a recovered panic.
	ErrPanic = errors.New("panic in symbol pipeline")
)

// Outcome is the typed result of processing one symbol in one tick.
type Outcome struct {
	TickID string
	Symbol string
	Status Status
	// Stage is where processing stopped. Empty when every stage ran.
	Stage    Stage
	Err      error
	Snapshot *types.FeatureSnapshot
	Signal   *types.SignalEvent
	// DeliveryErr is set when the signal was persisted but the
	// notification failed for at least one recipient.
	DeliveryErr error
	Duration    time.Duration
}

// TickReport aggregates the outcomes of one tick, in symbol order.
type TickReport struct {
	TickID   string
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Count returns how many outcomes have status s.
func (r TickReport) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Signals returns the signals persisted during the tick.
func (r TickReport) Signals() []types.SignalEvent {
	var out []types.SignalEvent
	for _, o := range r.Outcomes {
		if o.Signal != nil {
			out = append(out, *o.Signal)
		}
	}
	return out
}

// Outcome returns the outcome for symbol.
func (r TickReport) Outcome(symbol string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Symbol == symbol {
			return o, true
		}
	}
	return Outcome{}, false
}

// AllFailed reports whether every symbol ended in StatusFailed.
func (r TickReport) AllFailed() bool {
	return len(r.Outcomes) > 0 && r.Count(StatusFailed) == len(r.Outcomes)
}
