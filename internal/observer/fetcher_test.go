package observer

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tathienbao/signal-bot/internal/types"
)

func TestNormalize(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	bar := func(min int, c float64) types.Bar {
		return types.Bar{Timestamp: t0.Add(time.Duration(min) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}

	in := []types.Bar{
		bar(2, 1.3),
		bar(0, 1.1),
		bar(1, 1.2),
		bar(1, 1.25), // duplicate timestamp, later value wins
		bar(3, math.NaN()),
		bar(4, 0),
	}

	got := Normalize(in)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantCloses := []float64{1.1, 1.25, 1.3}
	for i, w := range wantCloses {
		if got[i].Close != w {
			t.Errorf("bar %d close = %f, want %f", i, got[i].Close, w)
		}
	}
}

func TestRequireBars(t *testing.T) {
	bars := make([]types.Bar, 49)
	if err := RequireBars(bars, 50); !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("RequireBars(49, 50) = %v, want ErrInsufficientData", err)
	}
	if err := RequireBars(append(bars, types.Bar{}), 50); err != nil {
		t.Errorf("RequireBars(50, 50) = %v, want nil", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"default yahoo", Config{}, ProviderYahoo, false},
		{"polygon", Config{Provider: "polygon", APIKey: "k"}, ProviderPolygon, false},
		{"polygon without key", Config{Provider: "polygon"}, "", true},
		{"binance", Config{Provider: "binance"}, ProviderBinance, false},
		{"csv", Config{Provider: "csv", CSVDir: "/tmp"}, ProviderCSV, false},
		{"csv without dir", Config{Provider: "csv"}, "", true},
		{"rate limited", Config{Provider: "yahoo", RequestsPerSec: 2}, ProviderYahoo, false},
		{"unknown", Config{Provider: "bloomberg"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, types.ErrInvalidConfig) {
					t.Errorf("error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Name() != tt.want {
				t.Errorf("Name() = %s, want %s", f.Name(), tt.want)
			}
		})
	}
}

func TestRateLimited_ContextCancelled(t *testing.T) {
	mem := NewMemoryFetcher()
	mem.SetBars("A", []types.Bar{{Timestamp: time.Now(), Open: 1, High: 1, Low: 1, Close: 1}})
	rl := NewRateLimited(mem, 0.001)

	// First call consumes the single burst token.
	if _, err := rl.Fetch(context.Background(), Request{Symbol: "A"}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := rl.Fetch(ctx, Request{Symbol: "A"})
	if !errors.Is(err, types.ErrFetchFailed) || !errors.Is(err, types.ErrRateLimitExceeded) {
		t.Errorf("error = %v, want ErrFetchFailed and ErrRateLimitExceeded", err)
	}
	if mem.Calls("A") != 1 {
		t.Errorf("calls = %d, want 1", mem.Calls("A"))
	}
}

func TestMemoryFetcher(t *testing.T) {
	mem := NewMemoryFetcher()
	boom := errors.New("boom")
	mem.SetError("B", boom)

	_, err := mem.Fetch(context.Background(), Request{Symbol: "B"})
	if !errors.Is(err, types.ErrFetchFailed) || !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
}

const yahooBody = `{"chart":{"result":[{"meta":{"symbol":"EURUSD=X"},
"timestamp":[1704186000,1704186060,1704186120],
"indicators":{"quote":[{
"open":[1.1040,null,1.1042],
"high":[1.1045,1.1046,1.1047],
"low":[1.1038,1.1039,1.1040],
"close":[1.1043,1.1044,1.1045],
"volume":[0,12,null]}]}}],"error":null}}`

func TestYahooFetcher_Fetch(t *testing.T) {
	var gotPath, gotInterval, gotPeriod1 string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotPeriod1 = r.URL.Query().Get("period1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(yahooBody))
	}))
	defer server.Close()

	f := NewYahooFetcher(server.URL, time.Second)
	now := time.Unix(1704190000, 0)
	f.now = func() time.Time { return now }

	bars, err := f.Fetch(context.Background(), Request{
		Symbol:   "EURUSD=X",
		Interval: time.Minute,
		Lookback: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotPath != "/v8/finance/chart/EURUSD=X" {
		t.Errorf("path = %s", gotPath)
	}
	if gotInterval != "1m" {
		t.Errorf("interval = %s, want 1m", gotInterval)
	}
	if gotPeriod1 != "1704017200" {
		t.Errorf("period1 = %s, want 1704017200", gotPeriod1)
	}

	// Row with a null open is dropped; null volume becomes zero.
	if len(bars) != 2 {
		t.Fatalf("len = %d, want 2", len(bars))
	}
	if bars[0].Close != 1.1043 || bars[1].Volume != 0 {
		t.Errorf("bars = %+v", bars)
	}
	if !bars[1].Timestamp.Equal(time.Unix(1704186120, 0)) {
		t.Errorf("timestamp = %v", bars[1].Timestamp)
	}
}

func TestYahooFetcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"chart error", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			f := NewYahooFetcher(server.URL, time.Second)
			_, err := f.Fetch(context.Background(), Request{Symbol: "BAD", Interval: time.Minute, Lookback: time.Hour})
			if !errors.Is(err, types.ErrFetchFailed) {
				t.Errorf("error = %v, want ErrFetchFailed", err)
			}
		})
	}
}

func TestYahooFetcher_UnsupportedInterval(t *testing.T) {
	f := NewYahooFetcher("http://127.0.0.1:1", time.Second)
	_, err := f.Fetch(context.Background(), Request{Symbol: "X", Interval: 7 * time.Minute, Lookback: time.Hour})
	if !errors.Is(err, types.ErrInvalidInterval) {
		t.Errorf("error = %v, want ErrInvalidInterval", err)
	}
}

func TestBinanceFetcher_Fetch(t *testing.T) {
	var gotLimit, gotInterval string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		gotLimit = r.URL.Query().Get("limit")
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
[1704186060000,"42010.5","42050.0","42000.0","42040.1","3.5",1704186119999,"147140.35",120,"1.7","71468.17","0"],
[1704186000000,"42000.0","42020.0","41990.0","42010.5","2.25",1704186059999,"94523.62",80,"1.1","46211.55","0"]
]`))
	}))
	defer server.Close()

	f := NewBinanceFetcher("", "", server.URL)
	bars, err := f.Fetch(context.Background(), Request{Symbol: "BTCUSDT", Interval: time.Minute, Lookback: 2 * time.Hour})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotLimit != "120" || gotInterval != "1m" {
		t.Errorf("limit = %s interval = %s, want 120 and 1m", gotLimit, gotInterval)
	}
	if len(bars) != 2 {
		t.Fatalf("len = %d, want 2", len(bars))
	}
	if bars[0].Close != 42010.5 || bars[1].Volume != 3.5 {
		t.Errorf("bars not normalized ascending: %+v", bars)
	}
}

func TestPolygonSpan(t *testing.T) {
	tests := []struct {
		in       time.Duration
		mult     int
		timespan string
		wantErr  bool
	}{
		{time.Minute, 1, "minute", false},
		{5 * time.Minute, 5, "minute", false},
		{2 * time.Hour, 2, "hour", false},
		{24 * time.Hour, 1, "day", false},
		{30 * time.Second, 0, "", true},
	}

	for _, tt := range tests {
		mult, span, err := polygonSpan(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("polygonSpan(%s) error = %v", tt.in, err)
			continue
		}
		if mult != tt.mult || string(span) != tt.timespan {
			t.Errorf("polygonSpan(%s) = %d %s, want %d %s", tt.in, mult, span, tt.mult, tt.timespan)
		}
	}
}
