// Package strategy classifies indicator rows into CALL, PUT or no signal.
package strategy

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/types"
)

// Evaluator classifies the latest indicator row.
// Evaluators are stateless: the same row always yields the same decision.
type Evaluator interface {
	// Evaluate returns the decision for a row. Rows that are not fully
	// defined always yield DirectionNone.
	Evaluate(row indicator.Row) Decision

	// Name returns the evaluator identifier.
	Name() string
}

// Decision is the result of evaluating one row.
type Decision struct {
	Direction types.Direction
	Row       indicator.Row
}

// Fired reports whether a CALL or PUT was produced.
func (d Decision) Fired() bool {
	return d.Direction != types.DirectionNone
}

// SignalAt builds the event to persist for a fired decision, created at t.
func (d Decision) SignalAt(symbol string, t time.Time) types.SignalEvent {
	return NewSignalBuilder(symbol, d.Row).Direction(d.Direction).CreatedAt(t).Build()
}

// SignalBuilder helps construct signal events with consistent defaults.
type SignalBuilder struct {
	signal types.SignalEvent
}

// NewSignalBuilder creates a builder seeded with the row's features.
// Result starts UNKNOWN and P/L starts empty.
func NewSignalBuilder(symbol string, row indicator.Row) *SignalBuilder {
	return &SignalBuilder{
		signal: types.SignalEvent{
			Timestamp:         row.Timestamp,
			Symbol:            symbol,
			EntryPrice:        row.Close,
			RSI2:              row.RSI,
			StochK:            row.StochK,
			BollingerPosition: row.BollingerPosition(),
			VolumeRatio:       row.VolumeRatio(),
			Result:            types.ResultUnknown,
			PL:                optional.None[float64](),
		},
	}
}

// Direction sets the signal direction.
func (b *SignalBuilder) Direction(d types.Direction) *SignalBuilder {
	b.signal.Direction = d
	return b
}

// CreatedAt sets the creation time.
func (b *SignalBuilder) CreatedAt(t time.Time) *SignalBuilder {
	b.signal.CreatedAt = t
	return b
}

// Build returns the constructed signal.
func (b *SignalBuilder) Build() types.SignalEvent {
	return b.signal
}
