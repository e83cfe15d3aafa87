package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/tathienbao/signal-bot/internal/types"
)

// TALib computes indicators with go-talib.
//
// TA-Lib fills its lookback region with zeros and maps degenerate input to
// 0 instead of leaving it undefined, so outputs are masked to NaN where
// the lookback is incomplete or the stochastic range is zero.
type TALib struct {
	params Params
}

// Name returns the backend name.
func (t *TALib) Name() string { return BackendTALib }

// Compute returns one row per bar.
func (t *TALib) Compute(bars []types.Bar) []Row {
	p := t.params
	closes, highs, lows, volumes := columns(bars)
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = newRow(b)
	}

	if len(bars) > p.RSIPeriod {
		rsi := talib.Rsi(closes, p.RSIPeriod)
		for i := p.RSIPeriod; i < len(bars); i++ {
			rows[i].RSI = rsi[i]
		}
		t.fixFlatRSI(closes, rows)
	}

	stochLookback := p.StochWindow + p.StochSmooth - 2
	if len(bars) > stochLookback {
		hh := talib.Max(highs, p.StochWindow)
		ll := talib.Min(lows, p.StochWindow)
		raw := make([]float64, len(bars))
		degenerate := make([]bool, len(bars))
		for i := p.StochWindow - 1; i < len(bars); i++ {
			rng := hh[i] - ll[i]
			if rng <= 0 {
				degenerate[i] = true
				continue
			}
			raw[i] = 100 * (closes[i] - ll[i]) / rng
		}
		slowK := talib.Sma(raw, p.StochSmooth)
		for i := stochLookback; i < len(bars); i++ {
			if anyTrue(degenerate[i-p.StochSmooth+1 : i+1]) {
				continue
			}
			rows[i].StochK = slowK[i]
		}
	}

	if len(bars) >= p.BBWindow {
		upper, middle, lower := talib.BBands(closes, p.BBWindow, p.BBDeviation, p.BBDeviation, talib.SMA)
		for i := p.BBWindow - 1; i < len(bars); i++ {
			rows[i].BBUpper = upper[i]
			rows[i].BBMiddle = middle[i]
			rows[i].BBLower = lower[i]
		}
	}

	if len(bars) >= p.VolumeSMAWindow {
		volSMA := talib.Sma(volumes, p.VolumeSMAWindow)
		for i := p.VolumeSMAWindow - 1; i < len(bars); i++ {
			rows[i].VolumeSMA = volSMA[i]
		}
	}

	return rows
}

// fixFlatRSI rewrites RSI to 100 where the smoothed average loss is zero.
// TA-Lib reports 0 when both averages are zero.
func (t *TALib) fixFlatRSI(closes []float64, rows []Row) {
	n := float64(t.params.RSIPeriod)
	var avgLoss float64
	for i := 1; i < len(closes); i++ {
		loss := math.Max(closes[i-1]-closes[i], 0)
		switch {
		case i < t.params.RSIPeriod:
			avgLoss += loss
		case i == t.params.RSIPeriod:
			avgLoss = (avgLoss + loss) / n
		default:
			avgLoss = (avgLoss*(n-1) + loss) / n
		}
		if i >= t.params.RSIPeriod && avgLoss == 0 {
			rows[i].RSI = 100
		}
	}
}

func anyTrue(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}
