package indicator

import (
	"github.com/shopspring/decimal"
)

// Bands holds one Bollinger Bands reading.
type Bands struct {
	Upper  decimal.Decimal
	Middle decimal.Decimal
	Lower  decimal.Decimal
}

// Width returns upper minus lower.
func (b Bands) Width() decimal.Decimal {
	return b.Upper.Sub(b.Lower)
}

// Bollinger calculates Bollinger Bands: SMA ± k population standard deviations.
type Bollinger struct {
	stddev *StdDev
	k      decimal.Decimal
}

// NewBollinger creates a Bollinger calculator with the given period and multiplier.
func NewBollinger(period int, k decimal.Decimal) *Bollinger {
	return &Bollinger{
		stddev: NewStdDev(period),
		k:      k,
	}
}

// Update adds a closing price and returns the current bands.
func (b *Bollinger) Update(price decimal.Decimal) Bands {
	b.stddev.Update(price)
	return b.Current()
}

// Current returns the current bands; zero bands until ready.
func (b *Bollinger) Current() Bands {
	if !b.Ready() {
		return Bands{}
	}
	mid := b.stddev.Mean()
	off := b.stddev.Current().Mul(b.k)
	return Bands{
		Upper:  mid.Add(off),
		Middle: mid,
		Lower:  mid.Sub(off),
	}
}

// Ready returns true if enough data points have been collected.
func (b *Bollinger) Ready() bool {
	return b.stddev.Ready()
}

// Period returns the band period.
func (b *Bollinger) Period() int {
	return b.stddev.Period()
}

// Reset clears all data.
func (b *Bollinger) Reset() {
	b.stddev.Reset()
}
