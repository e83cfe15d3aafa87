package observer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tathienbao/signal-bot/internal/types"
)

// CSVFetcher serves bars from <dir>/<symbol>.csv. The lookback window is
// anchored at the newest bar in the file, so recorded data replays the
// same way regardless of wall-clock time.
type CSVFetcher struct {
	dir string
}

// NewCSVFetcher creates a fetcher over a directory of per-symbol CSV files.
// CSV format: timestamp,open,high,low,close,volume
func NewCSVFetcher(dir string) *CSVFetcher {
	return &CSVFetcher{dir: dir}
}

// Name returns the provider identifier.
func (f *CSVFetcher) Name() string {
	return ProviderCSV
}

// Fetch reads the symbol's file and returns bars within the lookback.
func (f *CSVFetcher) Fetch(ctx context.Context, req Request) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetchErr(ProviderCSV, req.Symbol, err)
	}

	file, err := os.Open(filepath.Join(f.dir, fileName(req.Symbol)))
	if err != nil {
		return nil, fetchErr(ProviderCSV, req.Symbol, err)
	}
	defer file.Close()

	bars, err := ParseCSV(file)
	if err != nil {
		return nil, fetchErr(ProviderCSV, req.Symbol, err)
	}
	bars = Normalize(bars)

	if req.Lookback > 0 && len(bars) > 0 {
		cutoff := bars[len(bars)-1].Timestamp.Add(-req.Lookback)
		i := 0
		for i < len(bars) && bars[i].Timestamp.Before(cutoff) {
			i++
		}
		bars = bars[i:]
	}
	return bars, nil
}

// fileName maps a symbol to a safe file name.
func fileName(symbol string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(symbol) + ".csv"
}

// ParseCSV parses bars from a CSV reader. A header row is skipped and rows
// that cannot be parsed are dropped.
func ParseCSV(r io.Reader) ([]types.Bar, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var bars []types.Bar
	lineNum := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		lineNum++

		if lineNum == 1 && isHeader(record) {
			continue
		}
		if len(record) < 5 {
			continue
		}

		bar, err := parseRecord(record)
		if err != nil {
			continue
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func parseRecord(record []string) (types.Bar, error) {
	var bar types.Bar

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return bar, fmt.Errorf("parse timestamp: %w", err)
	}
	bar.Timestamp = ts

	fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return bar, fmt.Errorf("parse column %d: %w", i+1, err)
		}
		*dst = v
	}

	// Volume is optional.
	if len(record) > 5 {
		if vol, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64); err == nil {
			bar.Volume = vol
		}
	}

	return bar, nil
}

// parseTimestamp tries multiple timestamp formats. Zone-less values are UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		if unix > 1e12 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	formats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unknown timestamp format: %s", s)
}

// isHeader checks if a record looks like a header row.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(record[0])) {
	case "timestamp", "time", "date", "datetime", "open", "high", "low", "close":
		return true
	}
	return false
}
