// Package export writes recorded features and signals to Parquet files
// for offline model training.
package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/tathienbao/signal-bot/internal/persistence"
	"github.com/tathienbao/signal-bot/internal/types"
)

// File names written by Export.
const (
	SnapshotsFile = "features.parquet"
	SignalsFile   = "signals.parquet"
)

// SnapshotRow is the Parquet layout of a feature snapshot.
type SnapshotRow struct {
	ID                int64   `parquet:"id"`
	Timestamp         int64   `parquet:"ts_ms"`
	Symbol            string  `parquet:"symbol,dict"`
	Close             float64 `parquet:"close"`
	RSI2              float64 `parquet:"rsi2"`
	StochK            float64 `parquet:"stoch_k"`
	BollingerPosition float64 `parquet:"bb_pos"`
	Volume            float64 `parquet:"volume"`
	VolumeSMA         float64 `parquet:"volume_sma"`
	VolumeRatio       float64 `parquet:"volume_ratio"`
}

// SignalRow is the Parquet layout of a signal event. Result and PL are
// null until the signal is labeled.
type SignalRow struct {
	ID                int64    `parquet:"id"`
	Timestamp         int64    `parquet:"ts_ms"`
	Symbol            string   `parquet:"symbol,dict"`
	Direction         string   `parquet:"direction,dict"`
	EntryPrice        float64  `parquet:"entry_price"`
	RSI2              float64  `parquet:"rsi2"`
	StochK            float64  `parquet:"stoch_k"`
	BollingerPosition float64  `parquet:"bb_pos"`
	VolumeRatio       float64  `parquet:"volume_ratio"`
	Result            *string  `parquet:"result,optional"`
	PL                *float64 `parquet:"pl,optional"`
}

// NewSnapshotRow converts a snapshot.
func NewSnapshotRow(s types.FeatureSnapshot) SnapshotRow {
	return SnapshotRow{
		ID:                s.ID,
		Timestamp:         s.Timestamp.UnixMilli(),
		Symbol:            s.Symbol,
		Close:             s.Close,
		RSI2:              s.RSI2,
		StochK:            s.StochK,
		BollingerPosition: s.BollingerPosition,
		Volume:            s.Volume,
		VolumeSMA:         s.VolumeSMA,
		VolumeRatio:       s.VolumeRatio(),
	}
}

// NewSignalRow converts a signal event.
func NewSignalRow(s types.SignalEvent) SignalRow {
	row := SignalRow{
		ID:                s.ID,
		Timestamp:         s.Timestamp.UnixMilli(),
		Symbol:            s.Symbol,
		Direction:         s.Direction.String(),
		EntryPrice:        s.EntryPrice,
		RSI2:              s.RSI2,
		StochK:            s.StochK,
		BollingerPosition: s.BollingerPosition,
		VolumeRatio:       s.VolumeRatio,
	}
	if s.Result != types.ResultUnknown {
		r := s.Result.String()
		row.Result = &r
	}
	if s.PL.IsSome() {
		pl := s.PL.Unwrap()
		row.PL = &pl
	}
	return row
}

// WriteSnapshots writes snapshots to a Parquet file at path.
func WriteSnapshots(path string, snaps []types.FeatureSnapshot) error {
	rows := make([]SnapshotRow, len(snaps))
	for i, s := range snaps {
		rows[i] = NewSnapshotRow(s)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteSignals writes signals to a Parquet file at path.
func WriteSignals(path string, signals []types.SignalEvent) error {
	rows := make([]SignalRow, len(signals))
	for i, s := range signals {
		rows[i] = NewSignalRow(s)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Filter narrows what Export reads from the store.
type Filter struct {
	Symbol string
	Limit  int
}

// Result reports what Export wrote.
type Result struct {
	SnapshotsPath string
	SignalsPath   string
	Snapshots     int
	Signals       int
}

// Reader is the read side of the feature store used by Export.
type Reader interface {
	Snapshots(ctx context.Context, filter persistence.SnapshotFilter) ([]types.FeatureSnapshot, error)
	Signals(ctx context.Context, filter persistence.SignalFilter) ([]types.SignalEvent, error)
}

// Export reads matching records and writes both Parquet files into dir.
func Export(ctx context.Context, store Reader, dir string, f Filter) (Result, error) {
	snaps, err := store.Snapshots(ctx, persistence.SnapshotFilter{Symbol: f.Symbol, Limit: f.Limit})
	if err != nil {
		return Result{}, fmt.Errorf("read snapshots: %w", err)
	}
	signals, err := store.Signals(ctx, persistence.SignalFilter{Symbol: f.Symbol, Limit: f.Limit})
	if err != nil {
		return Result{}, fmt.Errorf("read signals: %w", err)
	}

	res := Result{
		SnapshotsPath: filepath.Join(dir, SnapshotsFile),
		SignalsPath:   filepath.Join(dir, SignalsFile),
		Snapshots:     len(snaps),
		Signals:       len(signals),
	}
	if err := WriteSnapshots(res.SnapshotsPath, snaps); err != nil {
		return Result{}, err
	}
	if err := WriteSignals(res.SignalsPath, signals); err != nil {
		return Result{}, err
	}
	return res, nil
}
