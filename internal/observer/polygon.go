package observer

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/tathienbao/signal-bot/internal/types"
)

// PolygonFetcher reads aggregate bars from Polygon.io.
// Forex symbols use Polygon tickers, e.g. "C:EURUSD".
type PolygonFetcher struct {
	client *polygon.Client
	now    func() time.Time
}

// NewPolygonFetcher creates a Polygon fetcher.
func NewPolygonFetcher(apiKey string) *PolygonFetcher {
	return &PolygonFetcher{
		client: polygon.New(apiKey),
		now:    time.Now,
	}
}

// Name returns the provider identifier.
func (p *PolygonFetcher) Name() string {
	return ProviderPolygon
}

// Fetch lists aggregates between now-lookback and now.
func (p *PolygonFetcher) Fetch(ctx context.Context, req Request) ([]types.Bar, error) {
	multiplier, timespan, err := polygonSpan(req.Interval)
	if err != nil {
		return nil, fetchErr(ProviderPolygon, req.Symbol, err)
	}

	end := p.now()
	params := (&models.ListAggsParams{
		Ticker:     req.Symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(end.Add(-req.Lookback)),
		To:         models.Millis(end),
	}).WithOrder(models.Asc).WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)

	var bars []types.Bar
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Timestamp: time.Time(agg.Timestamp).UTC(),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fetchErr(ProviderPolygon, req.Symbol, err)
	}

	return Normalize(bars), nil
}

func polygonSpan(d time.Duration) (int, models.Timespan, error) {
	switch {
	case d <= 0:
		return 0, "", fmt.Errorf("%w: %s", types.ErrInvalidInterval, d)
	case d%(24*time.Hour) == 0:
		return int(d / (24 * time.Hour)), models.Day, nil
	case d%time.Hour == 0:
		return int(d / time.Hour), models.Hour, nil
	case d%time.Minute == 0:
		return int(d / time.Minute), models.Minute, nil
	default:
		return 0, "", fmt.Errorf("%w: polygon needs whole minutes, got %s", types.ErrInvalidInterval, d)
	}
}
