package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func near(got, want decimal.Decimal, tol string) bool {
	return got.Sub(want).Abs().LessThanOrEqual(decimal.RequireFromString(tol))
}

// TestStdDev_BollingerWindow uses the 20-bar window the bands run on.
// For 1..20 the population variance is (n²-1)/12 = 33.25; the sample
// variance would be 35.0.
func TestStdDev_BollingerWindow(t *testing.T) {
	s := NewStdDev(20)

	for i := 1; i <= 19; i++ {
		if got := s.Update(decimal.NewFromInt(int64(i))); !got.IsZero() {
			t.Fatalf("Update(%d) = %s before the window filled, want 0", i, got)
		}
		if s.Ready() {
			t.Fatalf("Ready() = true after %d values", i)
		}
	}

	got := s.Update(decimal.NewFromInt(20))
	if !s.Ready() {
		t.Fatal("Ready() = false after 20 values")
	}
	want := decimal.RequireFromString("5.766281297335")
	if !near(got, want, "0.000000001") {
		t.Errorf("StdDev = %s, want %s (population)", got, want)
	}
	if !s.Mean().Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("Mean = %s, want 10.5", s.Mean())
	}
}

func TestStdDev_RingWrap(t *testing.T) {
	tests := []struct {
		name   string
		warmup []int64 // pushed first, must fall out of the window
		window []int64
		mean   string
		want   string
	}{
		{"no wrap", nil, []int64{2, 4, 4, 4, 5, 5, 7, 9}, "5", "2"},
		{"single wrap", []int64{1000, -1000, 500}, []int64{2, 4, 4, 4, 5, 5, 7, 9}, "5", "2"},
		{"many wraps", []int64{
			90, 80, 70, 60, 50, 40, 30, 20,
			19, 18, 17, 16, 15, 14, 13, 12,
			11, 10, 9,
		}, []int64{2, 4, 4, 4, 5, 5, 7, 9}, "5", "2"},
		{"constant after spike", []int64{1_000_000}, []int64{7, 7, 7, 7, 7, 7, 7, 7}, "7", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStdDev(len(tt.window))
			for _, v := range tt.warmup {
				s.Update(decimal.NewFromInt(v))
			}
			var got decimal.Decimal
			for _, v := range tt.window {
				got = s.Update(decimal.NewFromInt(v))
			}

			if !near(got, decimal.RequireFromString(tt.want), "0.000000001") {
				t.Errorf("StdDev = %s, want %s", got, tt.want)
			}
			if !s.Mean().Equal(decimal.RequireFromString(tt.mean)) {
				t.Errorf("Mean = %s, want %s", s.Mean(), tt.mean)
			}
		})
	}
}

// TestStdDev_MeanIsBollingerMiddle checks that the bands are centred on
// the window mean and offset by k population deviations.
func TestStdDev_MeanIsBollingerMiddle(t *testing.T) {
	s := NewStdDev(20)
	b := NewBollinger(20, decimal.NewFromInt(2))

	prices := []string{
		"1.1000", "1.1004", "1.0998", "1.1010", "1.1007",
		"1.1001", "1.0995", "1.0990", "1.0993", "1.1002",
		"1.1011", "1.1015", "1.1009", "1.1003", "1.0999",
		"1.0996", "1.1000", "1.1006", "1.1012", "1.1008",
		"1.0980", "1.0975",
	}
	var bands Bands
	for _, p := range prices {
		v := decimal.RequireFromString(p)
		s.Update(v)
		bands = b.Update(v)
	}

	if !bands.Middle.Equal(s.Mean()) {
		t.Errorf("Middle = %s, want Mean %s", bands.Middle, s.Mean())
	}
	off := s.Current().Mul(decimal.NewFromInt(2))
	if !bands.Upper.Equal(s.Mean().Add(off)) || !bands.Lower.Equal(s.Mean().Sub(off)) {
		t.Errorf("bands = %+v, want Mean ± %s", bands, off)
	}
	if !bands.Width().Equal(off.Mul(decimal.NewFromInt(2))) {
		t.Errorf("Width = %s, want %s", bands.Width(), off.Mul(decimal.NewFromInt(2)))
	}
}

func TestStdDev_Reset(t *testing.T) {
	s := NewStdDev(3)
	for _, v := range []int64{10, 20, 30} {
		s.Update(decimal.NewFromInt(v))
	}

	s.Reset()

	if s.Ready() {
		t.Error("Ready() = true after Reset")
	}
	if !s.Current().IsZero() {
		t.Errorf("Current() = %s after Reset, want 0", s.Current())
	}
	// A fresh window must not see pre-reset values.
	for _, v := range []int64{5, 5, 5} {
		s.Update(decimal.NewFromInt(v))
	}
	if !s.Current().IsZero() || !s.Mean().Equal(decimal.NewFromInt(5)) {
		t.Errorf("after refill: StdDev = %s, Mean = %s, want 0 and 5", s.Current(), s.Mean())
	}
}

func TestNewStdDev_ClampsPeriod(t *testing.T) {
	s := NewStdDev(0)
	if s.Period() != 1 {
		t.Errorf("Period() = %d, want 1", s.Period())
	}
	if got := s.Update(decimal.NewFromInt(42)); !got.IsZero() || !s.Ready() {
		t.Errorf("single-value window = %s (ready %v), want 0 and ready", got, s.Ready())
	}
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0"},
		{"-4", "0"},
		{"0.0001", "0.01"},
		{"33.25", "5.766281297335"},
		{"2", "1.414213562373"},
		{"1e10", "100000"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sqrt(decimal.RequireFromString(tt.input))
			if !near(got, decimal.RequireFromString(tt.want), "0.000000001") {
				t.Errorf("sqrt(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
