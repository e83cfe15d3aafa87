// Package indicator provides streaming technical indicators on decimal values.
//
// Each indicator is fed one value (or bar) at a time through Update and
// reports Ready once its lookback window is filled. Values returned before
// Ready are zero and must not be interpreted.
package indicator

import (
	"github.com/shopspring/decimal"
)

// SMA calculates a Simple Moving Average over a fixed window.
type SMA struct {
	period int
	window *window
	sum    decimal.Decimal
}

// NewSMA creates a new SMA calculator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: newWindow(period),
	}
}

// Update adds a new value and returns the current SMA.
// Returns zero if not enough data points yet.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	if evicted, ok := s.window.push(value); ok {
		s.sum = s.sum.Sub(evicted)
	}
	s.sum = s.sum.Add(value)
	return s.Current()
}

// Current returns the current SMA value without adding new data.
func (s *SMA) Current() decimal.Decimal {
	if !s.Ready() {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Ready returns true if enough data points have been collected.
func (s *SMA) Ready() bool {
	return s.window.full()
}

// Period returns the SMA period.
func (s *SMA) Period() int {
	return s.period
}

// Reset clears all data.
func (s *SMA) Reset() {
	s.window.reset()
	s.sum = decimal.Zero
}

// Count returns the number of values currently stored.
func (s *SMA) Count() int {
	return s.window.len()
}

// window is a fixed-capacity FIFO of decimals.
type window struct {
	values []decimal.Decimal
	head   int
	size   int
}

func newWindow(capacity int) *window {
	return &window{values: make([]decimal.Decimal, capacity)}
}

// push appends v and returns the evicted value once the window is full.
func (w *window) push(v decimal.Decimal) (decimal.Decimal, bool) {
	capacity := len(w.values)
	if w.size < capacity {
		w.values[(w.head+w.size)%capacity] = v
		w.size++
		return decimal.Zero, false
	}
	evicted := w.values[w.head]
	w.values[w.head] = v
	w.head = (w.head + 1) % capacity
	return evicted, true
}

func (w *window) full() bool { return w.size == len(w.values) }

func (w *window) len() int { return w.size }

func (w *window) reset() {
	w.head = 0
	w.size = 0
}

// each calls fn for every stored value, oldest first.
func (w *window) each(fn func(decimal.Decimal)) {
	for i := 0; i < w.size; i++ {
		fn(w.values[(w.head+i)%len(w.values)])
	}
}
