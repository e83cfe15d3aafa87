package indicator

import (
	"github.com/shopspring/decimal"
)

// StdDev calculates the population standard deviation over a fixed window.
type StdDev struct {
	period int
	window *window
	sma    *SMA
}

// NewStdDev creates a new StdDev calculator with the given period.
func NewStdDev(period int) *StdDev {
	if period < 1 {
		period = 1
	}
	return &StdDev{
		period: period,
		window: newWindow(period),
		sma:    NewSMA(period),
	}
}

// Update adds a new value and returns the current standard deviation.
// Returns zero if not enough data points yet.
func (s *StdDev) Update(value decimal.Decimal) decimal.Decimal {
	s.window.push(value)
	s.sma.Update(value)
	return s.Current()
}

// Current returns the current StdDev value without adding new data.
func (s *StdDev) Current() decimal.Decimal {
	if !s.Ready() {
		return decimal.Zero
	}
	mean := s.sma.Current()

	// variance = sum((x - mean)^2) / n
	var sumSquares decimal.Decimal
	s.window.each(func(v decimal.Decimal) {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	})
	return sqrt(sumSquares.Div(decimal.NewFromInt(int64(s.period))))
}

// Ready returns true if enough data points have been collected.
func (s *StdDev) Ready() bool {
	return s.window.full()
}

// Period returns the StdDev period.
func (s *StdDev) Period() int {
	return s.period
}

// Reset clears all data.
func (s *StdDev) Reset() {
	s.window.reset()
	s.sma.Reset()
}

// Mean returns the current mean (SMA).
func (s *StdDev) Mean() decimal.Decimal {
	return s.sma.Current()
}

// sqrt calculates the square root of a decimal using Newton's method.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}

	guess := d.Div(decimal.NewFromInt(2))
	if guess.IsZero() {
		guess = decimal.NewFromInt(1)
	}

	// x_new = (x + d/x) / 2
	two := decimal.NewFromInt(2)
	tolerance := decimal.New(1, -12)

	for i := 0; i < 200; i++ {
		next := guess.Add(d.Div(guess)).Div(two)
		if next.Sub(guess).Abs().LessThan(tolerance) {
			return next.Round(12)
		}
		guess = next
	}

	return guess.Round(12)
}
