package observer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tathienbao/signal-bot/internal/types"
)

// DefaultYahooURL is the public Yahoo Finance chart API host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher reads bars from the Yahoo Finance v8 chart endpoint.
type YahooFetcher struct {
	client *resty.Client
	now    func() time.Time
}

// NewYahooFetcher creates a Yahoo fetcher. An empty baseURL uses DefaultYahooURL.
func NewYahooFetcher(baseURL string, timeout time.Duration) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; signal-bot/1.0)").
		SetHeader("Accept", "application/json")

	return &YahooFetcher{client: client, now: time.Now}
}

// Name returns the provider identifier.
func (y *YahooFetcher) Name() string {
	return ProviderYahoo
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *yahooError        `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Fetch requests bars between now-lookback and now.
func (y *YahooFetcher) Fetch(ctx context.Context, req Request) ([]types.Bar, error) {
	interval, err := yahooInterval(req.Interval)
	if err != nil {
		return nil, fetchErr(ProviderYahoo, req.Symbol, err)
	}

	end := y.now()
	start := end.Add(-req.Lookback)

	var out yahooChartResponse
	resp, err := y.client.R().
		SetContext(ctx).
		SetPathParam("symbol", req.Symbol).
		SetQueryParams(map[string]string{
			"period1":        strconv.FormatInt(start.Unix(), 10),
			"period2":        strconv.FormatInt(end.Unix(), 10),
			"interval":       interval,
			"includePrePost": "false",
		}).
		SetResult(&out).
		SetError(&out).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return nil, fetchErr(ProviderYahoo, req.Symbol, err)
	}
	if out.Chart.Error != nil {
		return nil, fetchErr(ProviderYahoo, req.Symbol,
			fmt.Errorf("%s: %s", out.Chart.Error.Code, out.Chart.Error.Description))
	}
	if resp.IsError() {
		return nil, fetchErr(ProviderYahoo, req.Symbol, fmt.Errorf("http status %d", resp.StatusCode()))
	}
	if len(out.Chart.Result) == 0 {
		return nil, fetchErr(ProviderYahoo, req.Symbol, types.ErrInvalidData)
	}

	return Normalize(yahooBars(out.Chart.Result[0])), nil
}

// yahooBars converts parallel arrays into bars, skipping rows with a null field.
func yahooBars(r yahooChartResult) []types.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	at := func(s []*float64, i int) (float64, bool) {
		if i >= len(s) || s[i] == nil {
			return 0, false
		}
		return *s[i], true
	}

	bars := make([]types.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, ok1 := at(q.Open, i)
		h, ok2 := at(q.High, i)
		l, ok3 := at(q.Low, i)
		c, ok4 := at(q.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		v, _ := at(q.Volume, i)
		bars = append(bars, types.Bar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    v,
		})
	}
	return bars
}

func yahooInterval(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return "1m", nil
	case 2 * time.Minute:
		return "2m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "60m", nil
	case 90 * time.Minute:
		return "90m", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", fmt.Errorf("%w: yahoo does not support %s bars", types.ErrInvalidInterval, d)
	}
}
