// Package indicator turns a bar series into the feature rows the signal
// rules evaluate: RSI, Stochastic %K, Bollinger Bands and a volume SMA.
package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/tathienbao/signal-bot/internal/types"
)

// Backend names accepted by New.
const (
	BackendNative  = "native"
	BackendTALib   = "talib"
	BackendDecimal = "decimal"
)

// Params holds indicator periods.
type Params struct {
	RSIPeriod       int
	StochWindow     int
	StochSmooth     int
	BBWindow        int
	BBDeviation     float64
	VolumeSMAWindow int
}

// DefaultParams returns RSI(2), Stoch %K(14,3), BB(20,2) and volume SMA(10).
func DefaultParams() Params {
	return Params{
		RSIPeriod:       2,
		StochWindow:     14,
		StochSmooth:     3,
		BBWindow:        20,
		BBDeviation:     2,
		VolumeSMAWindow: 10,
	}
}

// Validate checks that every period is usable.
func (p Params) Validate() error {
	if p.RSIPeriod < 1 || p.StochWindow < 1 || p.StochSmooth < 1 || p.BBWindow < 1 || p.VolumeSMAWindow < 1 {
		return fmt.Errorf("%w: indicator periods must be positive: %+v", types.ErrInvalidConfig, p)
	}
	if p.BBDeviation <= 0 {
		return fmt.Errorf("%w: bollinger deviation must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// Warmup returns the minimum number of bars before every indicator is defined.
func (p Params) Warmup() int {
	return max(p.RSIPeriod+1, p.StochWindow+p.StochSmooth-1, p.BBWindow, p.VolumeSMAWindow)
}

// Row is the indicator state at one bar. Values that are not yet defined
// (insufficient lookback or degenerate input) are NaN.
type Row struct {
	Timestamp time.Time
	Close     float64
	Volume    float64
	RSI       float64
	StochK    float64
	BBUpper   float64
	BBMiddle  float64
	BBLower   float64
	VolumeSMA float64
}

func newRow(b types.Bar) Row {
	nan := math.NaN()
	return Row{
		Timestamp: b.Timestamp,
		Close:     b.Close,
		Volume:    b.Volume,
		RSI:       nan,
		StochK:    nan,
		BBUpper:   nan,
		BBMiddle:  nan,
		BBLower:   nan,
		VolumeSMA: nan,
	}
}

// Ready reports whether every indicator in the row is defined.
func (r Row) Ready() bool {
	for _, v := range []float64{r.RSI, r.StochK, r.BBUpper, r.BBMiddle, r.BBLower, r.VolumeSMA} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// BollingerPosition returns (close-lower)/(upper-lower+Epsilon).
func (r Row) BollingerPosition() float64 {
	return (r.Close - r.BBLower) / (r.BBUpper - r.BBLower + types.Epsilon)
}

// VolumeRatio returns volume/(volume SMA + Epsilon).
func (r Row) VolumeRatio() float64 {
	return r.Volume / (r.VolumeSMA + types.Epsilon)
}

// Snapshot converts the row into a persistable feature snapshot.
func (r Row) Snapshot(symbol string) types.FeatureSnapshot {
	return types.FeatureSnapshot{
		Timestamp:         r.Timestamp,
		Symbol:            symbol,
		Close:             r.Close,
		RSI2:              r.RSI,
		StochK:            r.StochK,
		BollingerPosition: r.BollingerPosition(),
		Volume:            r.Volume,
		VolumeSMA:         r.VolumeSMA,
	}
}

// Engine computes indicator rows for a bar series. Implementations are
// pure: the same bars always produce the same rows, and row i depends only
// on bars[0..i].
type Engine interface {
	Name() string
	Compute(bars []types.Bar) []Row
}

// New returns the engine for the named backend. An empty name selects native.
func New(backend string, p Params) (Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch backend {
	case "", BackendNative:
		return &Native{params: p}, nil
	case BackendTALib:
		if p.RSIPeriod < 2 || p.StochWindow < 2 || p.BBWindow < 2 {
			return nil, fmt.Errorf("%w: talib backend needs rsi, stochastic and bollinger periods >= 2", types.ErrInvalidConfig)
		}
		return &TALib{params: p}, nil
	case BackendDecimal:
		return &Decimal{params: p}, nil
	default:
		return nil, fmt.Errorf("%w: unknown indicator backend %q", types.ErrInvalidConfig, backend)
	}
}

// Latest computes rows and returns the one for the last bar.
// Returns ErrIndicatorUndefined if it is not fully defined.
func Latest(e Engine, bars []types.Bar) (Row, error) {
	if len(bars) == 0 {
		return Row{}, fmt.Errorf("%w: no bars", types.ErrInsufficientData)
	}
	rows := e.Compute(bars)
	last := rows[len(rows)-1]
	if !last.Ready() {
		return last, fmt.Errorf("%w: %s at %s", types.ErrIndicatorUndefined, e.Name(), last.Timestamp.Format(time.RFC3339))
	}
	return last, nil
}
