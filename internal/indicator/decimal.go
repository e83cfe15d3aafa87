package indicator

import (
	"github.com/shopspring/decimal"

	"github.com/tathienbao/signal-bot/internal/types"
	"github.com/tathienbao/signal-bot/pkg/indicator"
)

// Decimal computes indicators by streaming bars through the decimal
// calculators in pkg/indicator.
type Decimal struct {
	params Params
}

// Name returns the backend name.
func (d *Decimal) Name() string { return BackendDecimal }

// Compute returns one row per bar. A fresh Calculator is used per call so
// results never depend on earlier calls.
func (d *Decimal) Compute(bars []types.Bar) []Row {
	calc := NewCalculator(d.params)
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = calc.OnBar(b)
	}
	return rows
}

// Calculator holds streaming indicator state for one symbol.
type Calculator struct {
	rsi    *indicator.RSI
	stoch  *indicator.Stochastic
	bb     *indicator.Bollinger
	volSMA *indicator.SMA
}

// NewCalculator creates a new indicator calculator.
func NewCalculator(p Params) *Calculator {
	return &Calculator{
		rsi:    indicator.NewRSI(p.RSIPeriod),
		stoch:  indicator.NewStochastic(p.StochWindow, p.StochSmooth),
		bb:     indicator.NewBollinger(p.BBWindow, decimal.NewFromFloat(p.BBDeviation)),
		volSMA: indicator.NewSMA(p.VolumeSMAWindow),
	}
}

// OnBar updates all indicators with a new bar and returns its row.
func (c *Calculator) OnBar(b types.Bar) Row {
	closePx := decimal.NewFromFloat(b.Close)

	rsi := c.rsi.Update(closePx)
	k := c.stoch.Update(decimal.NewFromFloat(b.High), decimal.NewFromFloat(b.Low), closePx)
	bands := c.bb.Update(closePx)
	vol := c.volSMA.Update(decimal.NewFromFloat(b.Volume))

	row := newRow(b)
	if c.rsi.Ready() {
		row.RSI = rsi.InexactFloat64()
	}
	if c.stoch.Ready() && c.stoch.Defined() {
		row.StochK = k.InexactFloat64()
	}
	if c.bb.Ready() {
		row.BBUpper = bands.Upper.InexactFloat64()
		row.BBMiddle = bands.Middle.InexactFloat64()
		row.BBLower = bands.Lower.InexactFloat64()
	}
	if c.volSMA.Ready() {
		row.VolumeSMA = vol.InexactFloat64()
	}
	return row
}

// Ready returns true if all indicators have enough data.
func (c *Calculator) Ready() bool {
	return c.rsi.Ready() && c.stoch.Ready() && c.bb.Ready() && c.volSMA.Ready()
}

// Reset clears all indicator state.
func (c *Calculator) Reset() {
	c.rsi.Reset()
	c.stoch.Reset()
	c.bb.Reset()
	c.volSMA.Reset()
}
