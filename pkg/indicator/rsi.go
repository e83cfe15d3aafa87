package indicator

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// rsiScale keeps long flat runs from rounding the smoothed averages to zero.
const rsiScale = 32

// RSI calculates Wilder's Relative Strength Index over closing prices.
//
// The first average gain and loss are simple means of the first period
// changes. Later averages use Wilder smoothing: (prev*(n-1) + x) / n.
type RSI struct {
	period  int
	prev    decimal.Decimal
	hasPrev bool
	changes int
	avgGain decimal.Decimal
	avgLoss decimal.Decimal
}

// NewRSI creates a new RSI calculator with the given period.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update adds a closing price and returns the current RSI.
// Returns zero until period changes have been seen.
func (r *RSI) Update(price decimal.Decimal) decimal.Decimal {
	if !r.hasPrev {
		r.prev = price
		r.hasPrev = true
		return decimal.Zero
	}

	change := price.Sub(r.prev)
	r.prev = price

	gain, loss := decimal.Zero, decimal.Zero
	if change.IsPositive() {
		gain = change
	} else {
		loss = change.Neg()
	}

	n := decimal.NewFromInt(int64(r.period))
	r.changes++
	switch {
	case r.changes < r.period:
		r.avgGain = r.avgGain.Add(gain)
		r.avgLoss = r.avgLoss.Add(loss)
		return decimal.Zero
	case r.changes == r.period:
		r.avgGain = r.avgGain.Add(gain).DivRound(n, rsiScale)
		r.avgLoss = r.avgLoss.Add(loss).DivRound(n, rsiScale)
	default:
		m := decimal.NewFromInt(int64(r.period - 1))
		r.avgGain = r.avgGain.Mul(m).Add(gain).DivRound(n, rsiScale)
		r.avgLoss = r.avgLoss.Mul(m).Add(loss).DivRound(n, rsiScale)
	}

	return r.Current()
}

// Current returns the current RSI value without adding new data.
// RSI is 100 when the average loss is zero.
func (r *RSI) Current() decimal.Decimal {
	if !r.Ready() {
		return decimal.Zero
	}
	if r.avgLoss.IsZero() {
		return hundred
	}
	rs := r.avgGain.Div(r.avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// Ready returns true once the seed average is available.
func (r *RSI) Ready() bool {
	return r.changes >= r.period
}

// Period returns the RSI period.
func (r *RSI) Period() int {
	return r.period
}

// Reset clears all data.
func (r *RSI) Reset() {
	*r = RSI{period: r.period}
}
