// Package persistence provides the append-only feature store.
package persistence

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/tathienbao/signal-bot/internal/types"
)

// FeatureStore persists feature snapshots and signal events.
//
// Records are append-only: nothing is updated or deleted, except that a
// signal's result and P/L may be filled in once by an external labeler.
type FeatureStore interface {
	// Write operations
	RecordSnapshot(ctx context.Context, snapshot types.FeatureSnapshot) (int64, error)
	RecordSignal(ctx context.Context, signal types.SignalEvent) (int64, error)

	// Read operations
	AggregateStats(ctx context.Context) (types.Stats, error)
	Snapshots(ctx context.Context, filter SnapshotFilter) ([]types.FeatureSnapshot, error)
	Signals(ctx context.Context, filter SignalFilter) ([]types.SignalEvent, error)
	LastSnapshotTime(ctx context.Context, symbol string) (time.Time, bool, error)

	// LabelSignal records an externally determined outcome.
	LabelSignal(ctx context.Context, id int64, result types.Result, pl optional.Option[float64]) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// SnapshotFilter selects snapshots. Zero values match everything.
type SnapshotFilter struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

// SignalFilter selects signals, newest first. Zero values match everything.
type SignalFilter struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}
