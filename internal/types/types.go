// Package types defines shared types used across the signal pipeline.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/moznion/go-optional"
)

// Epsilon keeps the feature ratios finite when a denominator collapses to zero.
const Epsilon = 1e-9

// Bar is one OHLCV sample for a fixed interval.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Direction is the outcome of rule evaluation for a bar.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionCall
	DirectionPut
)

func (d Direction) String() string {
	switch d {
	case DirectionCall:
		return "CALL"
	case DirectionPut:
		return "PUT"
	default:
		return ""
	}
}

// Label is the human-facing name used in notifications.
func (d Direction) Label() string {
	switch d {
	case DirectionCall:
		return "🚀 SUPER CALL ✅"
	case DirectionPut:
		return "💥 SUPER PUT ❌"
	default:
		return "no signal"
	}
}

// ParseDirection converts a stored direction string.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL":
		return DirectionCall, nil
	case "PUT":
		return DirectionPut, nil
	case "":
		return DirectionNone, nil
	default:
		return DirectionNone, fmt.Errorf("%w: unknown direction %q", ErrInvalidData, s)
	}
}

// Result is the externally labeled outcome of a signal.
type Result int

const (
	ResultUnknown Result = iota
	ResultWin
	ResultLoss
)

func (r Result) String() string {
	switch r {
	case ResultWin:
		return "WIN"
	case ResultLoss:
		return "LOSS"
	default:
		return "UNKNOWN"
	}
}

// ParseResult accepts win/loss/unknown in any case, plus 1/0.
func ParseResult(s string) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w", "1":
		return ResultWin, nil
	case "loss", "l", "0":
		return ResultLoss, nil
	case "unknown", "":
		return ResultUnknown, nil
	default:
		return ResultUnknown, fmt.Errorf("%w: unknown result %q", ErrInvalidData, s)
	}
}

// FeatureSnapshot is the indicator state of one symbol at one bar.
// Snapshots are recorded every tick whether or not a signal fires.
type FeatureSnapshot struct {
	ID                int64
	Timestamp         time.Time
	Symbol            string
	Close             float64
	RSI2              float64
	StochK            float64
	BollingerPosition float64 // (close-lower)/(upper-lower+Epsilon), unbounded
	Volume            float64
	VolumeSMA         float64
}

// VolumeRatio returns volume/(volume SMA + Epsilon).
func (f FeatureSnapshot) VolumeRatio() float64 {
	return f.Volume / (f.VolumeSMA + Epsilon)
}

// SignalEvent is a fired CALL or PUT with the features that triggered it.
// Values are copied from the snapshot; there is no foreign key.
type SignalEvent struct {
	ID                int64
	Timestamp         time.Time
	Symbol            string
	Direction         Direction
	EntryPrice        float64
	RSI2              float64
	StochK            float64
	BollingerPosition float64
	VolumeRatio       float64
	Result            Result
	PL                optional.Option[float64]
	CreatedAt         time.Time
}

// Stats aggregates labeled outcomes across all signals.
type Stats struct {
	Total   int
	Wins    int
	Losses  int
	WinRate float64 // percent, 0 when Total is 0
}

// NewStats computes the win rate over total signals.
func NewStats(total, wins, losses int) Stats {
	s := Stats{Total: total, Wins: wins, Losses: losses}
	if total > 0 {
		s.WinRate = float64(wins) / float64(total) * 100
	}
	return s
}

// Unlabeled returns signals with neither a win nor a loss recorded.
func (s Stats) Unlabeled() int {
	return s.Total - s.Wins - s.Losses
}
