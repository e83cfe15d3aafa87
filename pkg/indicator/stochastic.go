package indicator

import (
	"github.com/shopspring/decimal"
)

// Stochastic calculates the smoothed Stochastic %K oscillator.
//
// Raw %K = 100 * (close - lowest low) / (highest high - lowest low) over the
// lookback window, then smoothed with an SMA. A window where the high equals
// the low has no raw value; any such window inside the smoothing span makes
// the smoothed value undefined.
type Stochastic struct {
	period     int
	smooth     int
	highs      *window
	lows       *window
	raw        *SMA
	degenerate int // raw values in the smoothing span that were undefined
	flags      []bool
}

// NewStochastic creates a %K calculator with the given lookback and smoothing.
func NewStochastic(period, smooth int) *Stochastic {
	if period < 1 {
		period = 1
	}
	if smooth < 1 {
		smooth = 1
	}
	return &Stochastic{
		period: period,
		smooth: smooth,
		highs:  newWindow(period),
		lows:   newWindow(period),
		raw:    NewSMA(smooth),
		flags:  make([]bool, 0, smooth),
	}
}

// Update adds a bar and returns the current smoothed %K.
// Returns zero while not ready or undefined.
func (s *Stochastic) Update(high, low, close decimal.Decimal) decimal.Decimal {
	s.highs.push(high)
	s.lows.push(low)
	if !s.highs.full() {
		return decimal.Zero
	}

	hh, ll := s.extremes()
	rng := hh.Sub(ll)
	degenerate := !rng.IsPositive()

	raw := decimal.Zero
	if !degenerate {
		raw = hundred.Mul(close.Sub(ll)).Div(rng)
	}
	s.raw.Update(raw)

	s.flags = append(s.flags, degenerate)
	if degenerate {
		s.degenerate++
	}
	if len(s.flags) > s.smooth {
		if s.flags[0] {
			s.degenerate--
		}
		s.flags = s.flags[1:]
	}

	return s.Current()
}

func (s *Stochastic) extremes() (decimal.Decimal, decimal.Decimal) {
	var hh, ll decimal.Decimal
	first := true
	s.highs.each(func(v decimal.Decimal) {
		if first || v.GreaterThan(hh) {
			hh = v
		}
		first = false
	})
	first = true
	s.lows.each(func(v decimal.Decimal) {
		if first || v.LessThan(ll) {
			ll = v
		}
		first = false
	})
	return hh, ll
}

// Current returns the smoothed %K, or zero when not ready or undefined.
func (s *Stochastic) Current() decimal.Decimal {
	if !s.Ready() || !s.Defined() {
		return decimal.Zero
	}
	return s.raw.Current()
}

// Ready returns true once the lookback and smoothing windows are filled.
func (s *Stochastic) Ready() bool {
	return s.raw.Ready()
}

// Defined reports whether every raw value in the smoothing span had a
// non-zero high-low range.
func (s *Stochastic) Defined() bool {
	return s.degenerate == 0
}

// Period returns the lookback period.
func (s *Stochastic) Period() int {
	return s.period
}

// Reset clears all data.
func (s *Stochastic) Reset() {
	s.highs.reset()
	s.lows.reset()
	s.raw.Reset()
	s.flags = s.flags[:0]
	s.degenerate = 0
}
