package observer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/tathienbao/signal-bot/internal/types"
)

// binanceMaxLimit is the largest page the klines endpoint returns.
const binanceMaxLimit = 1000

// BinanceFetcher reads klines from the Binance spot REST API.
type BinanceFetcher struct {
	client *binance.Client
	now    func() time.Time
}

// NewBinanceFetcher creates a Binance fetcher. Keys may be empty for
// public market data. A non-empty baseURL overrides the API host.
func NewBinanceFetcher(apiKey, secretKey, baseURL string) *BinanceFetcher {
	client := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinanceFetcher{client: client, now: time.Now}
}

// Name returns the provider identifier.
func (b *BinanceFetcher) Name() string {
	return ProviderBinance
}

// Fetch requests up to lookback/interval klines ending now.
func (b *BinanceFetcher) Fetch(ctx context.Context, req Request) ([]types.Bar, error) {
	interval, err := binanceInterval(req.Interval)
	if err != nil {
		return nil, fetchErr(ProviderBinance, req.Symbol, err)
	}

	limit := int(req.Lookback / req.Interval)
	if limit < 1 {
		limit = 1
	}
	if limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}

	end := b.now()
	klines, err := b.client.NewKlinesService().
		Symbol(req.Symbol).
		Interval(interval).
		EndTime(end.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fetchErr(ProviderBinance, req.Symbol, err)
	}

	bars := make([]types.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := klineBar(k)
		if err != nil {
			continue
		}
		bars = append(bars, bar)
	}
	return Normalize(bars), nil
}

func klineBar(k *binance.Kline) (types.Bar, error) {
	bar := types.Bar{Timestamp: time.UnixMilli(k.OpenTime).UTC()}
	fields := []struct {
		raw string
		dst *float64
	}{
		{k.Open, &bar.Open},
		{k.High, &bar.High},
		{k.Low, &bar.Low},
		{k.Close, &bar.Close},
		{k.Volume, &bar.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return bar, fmt.Errorf("parse kline: %w", err)
		}
		*f.dst = v
	}
	return bar, nil
}

func binanceInterval(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return "1m", nil
	case 3 * time.Minute:
		return "3m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1h", nil
	case 2 * time.Hour:
		return "2h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", fmt.Errorf("%w: binance does not support %s bars", types.ErrInvalidInterval, d)
	}
}
