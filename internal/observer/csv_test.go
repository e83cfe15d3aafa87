package observer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tathienbao/signal-bot/internal/types"
)

// TestParseCSV_ValidData tests CSV parsing with a header row.
func TestParseCSV_ValidData(t *testing.T) {
	csvData := `timestamp,open,high,low,close,volume
2024-01-01 09:30:00,1.10250,1.10300,1.10200,1.10275,1000
`
	bars, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}

	bar := bars[0]
	if bar.Open != 1.1025 || bar.Close != 1.10275 || bar.Volume != 1000 {
		t.Errorf("bar = %+v, unexpected values", bar)
	}
	want := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	if !bar.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", bar.Timestamp, want)
	}
}

// TestParseCSV_InvalidData tests that unparseable rows are skipped.
func TestParseCSV_InvalidData(t *testing.T) {
	csvData := `timestamp,open,high,low,close,volume
2024-01-01 09:30:00,invalid,5010,4990,5005,1000
2024-01-01 09:35:00,5005,5015,5000,5010,1200
2024-01-01 09:40:00,5005,5015
`
	bars, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Errorf("expected 1 valid bar, got %d", len(bars))
	}
}

// TestParseCSV_EmptyFile tests empty input.
func TestParseCSV_EmptyFile(t *testing.T) {
	bars, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("expected 0 bars, got %d", len(bars))
	}
}

// TestParseTimestamp_MultipleFormats tests timestamp format support.
func TestParseTimestamp_MultipleFormats(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Unix seconds", "1704110400", false},
		{"Unix millis", "1704110400000", false},
		{"ISO datetime", "2024-01-01 09:30:00", false},
		{"ISO with T", "2024-01-01T09:30:00", false},
		{"RFC3339", "2024-01-01T09:30:00Z", false},
		{"With offset", "2024-01-01 09:30:00+00:00", false},
		{"Date only", "2024-01-01", false},
		{"US format", "01/02/2024 09:30:00", false},
		{"Invalid", "not-a-date", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := parseTimestamp(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ts.IsZero() {
				t.Error("expected non-zero timestamp")
			}
		})
	}

	sec, _ := parseTimestamp("1704110400")
	ms, _ := parseTimestamp("1704110400000")
	if !sec.Equal(ms) {
		t.Errorf("seconds %v and millis %v should match", sec, ms)
	}
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func TestCSVFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	// Written newest first to check ordering.
	for i := 9; i >= 0; i-- {
		ts := start.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05")
		b.WriteString(ts + ",1.1,1.2,1.0,1.15,100\n")
	}
	writeCSV(t, dir, "C_EURUSD.csv", b.String())

	f := NewCSVFetcher(dir)
	bars, err := f.Fetch(context.Background(), Request{
		Symbol:   "C:EURUSD",
		Interval: time.Minute,
		Lookback: 4 * time.Minute,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(bars) != 5 {
		t.Fatalf("len = %d, want 5 bars within lookback", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Fatalf("bars not ascending at %d", i)
		}
	}
	if want := start.Add(9 * time.Minute); !bars[4].Timestamp.Equal(want) {
		t.Errorf("last = %v, want %v", bars[4].Timestamp, want)
	}
}

func TestCSVFetcher_MissingFile(t *testing.T) {
	f := NewCSVFetcher(t.TempDir())
	_, err := f.Fetch(context.Background(), Request{Symbol: "NOPE", Interval: time.Minute})
	if !errors.Is(err, types.ErrFetchFailed) {
		t.Errorf("error = %v, want ErrFetchFailed", err)
	}
}
