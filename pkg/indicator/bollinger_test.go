package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBollinger_Basic(t *testing.T) {
	bb := NewBollinger(3, decimal.NewFromInt(2))

	bb.Update(decimal.NewFromInt(10))
	bb.Update(decimal.NewFromInt(20))
	bands := bb.Update(decimal.NewFromInt(30))

	// Mean 20, population stddev ~8.165 -> upper ~36.33, lower ~3.67
	if !bands.Middle.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Middle = %s, want 20", bands.Middle)
	}
	tol := decimal.RequireFromString("0.01")
	if bands.Upper.Sub(decimal.RequireFromString("36.33")).Abs().GreaterThan(tol) {
		t.Errorf("Upper = %s, want ~36.33", bands.Upper)
	}
	if bands.Lower.Sub(decimal.RequireFromString("3.67")).Abs().GreaterThan(tol) {
		t.Errorf("Lower = %s, want ~3.67", bands.Lower)
	}
}

func TestBollinger_ZeroWidth(t *testing.T) {
	bb := NewBollinger(3, decimal.NewFromInt(2))

	for i := 0; i < 3; i++ {
		bb.Update(decimal.NewFromInt(7))
	}

	if !bb.Current().Width().IsZero() {
		t.Errorf("Width = %s, want 0 for a flat series", bb.Current().Width())
	}
}

func TestBollinger_NotReady(t *testing.T) {
	bb := NewBollinger(20, decimal.NewFromInt(2))
	bands := bb.Update(decimal.NewFromInt(1))

	if bb.Ready() {
		t.Error("Bollinger should not be ready after one value")
	}
	if !bands.Middle.IsZero() {
		t.Errorf("Middle = %s, want 0 when not ready", bands.Middle)
	}
}
