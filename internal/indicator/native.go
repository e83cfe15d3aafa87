package indicator

import (
	"math"

	"github.com/tathienbao/signal-bot/internal/types"
)

// Native computes indicators with plain float64 batch functions.
type Native struct {
	params Params
}

// Name returns the backend name.
func (n *Native) Name() string { return BackendNative }

// Compute returns one row per bar.
func (n *Native) Compute(bars []types.Bar) []Row {
	closes, highs, lows, volumes := columns(bars)

	rsi := RSI(closes, n.params.RSIPeriod)
	stoch := Stochastic(highs, lows, closes, n.params.StochWindow, n.params.StochSmooth)
	upper, middle, lower := Bollinger(closes, n.params.BBWindow, n.params.BBDeviation)
	volSMA := SMA(volumes, n.params.VolumeSMAWindow)

	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = Row{
			Timestamp: b.Timestamp,
			Close:     b.Close,
			Volume:    b.Volume,
			RSI:       rsi[i],
			StochK:    stoch[i],
			BBUpper:   upper[i],
			BBMiddle:  middle[i],
			BBLower:   lower[i],
			VolumeSMA: volSMA[i],
		}
	}
	return rows
}

func columns(bars []types.Bar) (closes, highs, lows, volumes []float64) {
	closes = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}
	return closes, highs, lows, volumes
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA returns the simple moving average; the first period-1 values are NaN.
// A NaN input poisons every window that contains it.
func SMA(values []float64, period int) []float64 {
	out := nans(len(values))
	if period < 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// RSI returns Wilder's RSI. The first defined value is at index period.
func RSI(closes []float64, period int) []float64 {
	out := nans(len(closes))
	if period < 1 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// Stochastic returns %K smoothed by an SMA. Raw %K is NaN where the
// window's highest high equals its lowest low, so any smoothed value that
// covers such a window is NaN too.
func Stochastic(highs, lows, closes []float64, window, smooth int) []float64 {
	raw := nans(len(closes))
	if window >= 1 {
		for i := window - 1; i < len(closes); i++ {
			hh, ll := highs[i], lows[i]
			for j := i - window + 1; j < i; j++ {
				hh = math.Max(hh, highs[j])
				ll = math.Min(ll, lows[j])
			}
			if hh-ll <= 0 {
				continue
			}
			raw[i] = 100 * (closes[i] - ll) / (hh - ll)
		}
	}
	return SMA(raw, smooth)
}

// Bollinger returns upper, middle and lower bands using the population
// standard deviation.
func Bollinger(closes []float64, window int, k float64) (upper, middle, lower []float64) {
	middle = SMA(closes, window)
	upper = nans(len(closes))
	lower = nans(len(closes))
	for i := window - 1; i >= 0 && i < len(closes); i++ {
		mean := middle[i]
		variance := 0.0
		for _, v := range closes[i-window+1 : i+1] {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(window))
		upper[i] = mean + k*sd
		lower[i] = mean - k*sd
	}
	return upper, middle, lower
}
