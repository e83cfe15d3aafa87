// Package observer fetches recent OHLCV bars from market data providers.
package observer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tathienbao/signal-bot/internal/types"
)

// Provider names accepted by New.
const (
	ProviderYahoo   = "yahoo"
	ProviderPolygon = "polygon"
	ProviderBinance = "binance"
	ProviderCSV     = "csv"
)

// Request describes the bars wanted for one symbol.
type Request struct {
	Symbol   string
	Interval time.Duration // bar size, e.g. one minute
	Lookback time.Duration // how far back from now
}

// Fetcher returns recent bars for a symbol, oldest first, with no
// duplicate timestamps. Errors wrap types.ErrFetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]types.Bar, error)

	// Name returns the provider identifier.
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider       string
	BaseURL        string
	APIKey         string
	APISecret      string
	CSVDir         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// New builds the configured fetcher, rate-limited when RequestsPerSec > 0.
func New(cfg Config) (Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	var f Fetcher
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderYahoo:
		f = NewYahooFetcher(cfg.BaseURL, cfg.Timeout)
	case ProviderPolygon:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: polygon provider requires an api key", types.ErrInvalidConfig)
		}
		f = NewPolygonFetcher(cfg.APIKey)
	case ProviderBinance:
		f = NewBinanceFetcher(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
	case ProviderCSV:
		if cfg.CSVDir == "" {
			return nil, fmt.Errorf("%w: csv provider requires a directory", types.ErrInvalidConfig)
		}
		f = NewCSVFetcher(cfg.CSVDir)
	default:
		return nil, fmt.Errorf("%w: unknown data provider %q", types.ErrInvalidConfig, cfg.Provider)
	}

	if cfg.RequestsPerSec > 0 {
		f = NewRateLimited(f, cfg.RequestsPerSec)
	}
	return f, nil
}

// Normalize sorts bars by time, keeps the last bar for a repeated
// timestamp, and drops bars with non-finite or non-positive prices.
func Normalize(bars []types.Bar) []types.Bar {
	clean := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if !validBar(b) {
			continue
		}
		clean = append(clean, b)
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Timestamp.Before(clean[j].Timestamp)
	})

	out := clean[:0]
	for _, b := range clean {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func validBar(b types.Bar) bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return !math.IsNaN(b.Volume) && !math.IsInf(b.Volume, 0) && b.Volume >= 0
}

// RequireBars returns ErrInsufficientData when fewer than minBars are present.
func RequireBars(bars []types.Bar, minBars int) error {
	if len(bars) < minBars {
		return fmt.Errorf("%w: got %d bars, need %d", types.ErrInsufficientData, len(bars), minBars)
	}
	return nil
}

// RateLimited wraps a Fetcher with a token-bucket limiter shared across symbols.
type RateLimited struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond fetches per second with an equal burst.
func NewRateLimited(next Fetcher, perSecond float64) *RateLimited {
	burst := int(math.Max(1, math.Ceil(perSecond)))
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Fetch waits for a token, then delegates.
func (r *RateLimited) Fetch(ctx context.Context, req Request) ([]types.Bar, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrFetchFailed, types.ErrRateLimitExceeded, err)
	}
	return r.next.Fetch(ctx, req)
}

// Name returns the wrapped provider's name.
func (r *RateLimited) Name() string {
	return r.next.Name()
}

func fetchErr(provider, symbol string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", types.ErrFetchFailed, provider, symbol, err)
}
