// Package stats formats the aggregate signal statistics served to chat
// commands and the CLI.
package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/signal-bot/internal/types"
)

// Source provides aggregate counts over all recorded signals.
type Source interface {
	AggregateStats(ctx context.Context) (types.Stats, error)
}

// Summary is a display-ready view of types.Stats.
type Summary struct {
	Total     int
	Wins      int
	Losses    int
	Unlabeled int
	WinRate   decimal.Decimal // percent, rounded to one decimal place
}

// NewSummary rounds the win rate for display.
func NewSummary(s types.Stats) Summary {
	return Summary{
		Total:     s.Total,
		Wins:      s.Wins,
		Losses:    s.Losses,
		Unlabeled: s.Unlabeled(),
		WinRate:   decimal.NewFromFloat(s.WinRate).Round(1),
	}
}

// Reporter reads fresh statistics on every call.
type Reporter struct {
	source  Source
	symbols []string
}

// NewReporter creates a reporter for the tracked symbols.
func NewReporter(source Source, symbols []string) *Reporter {
	return &Reporter{source: source, symbols: append([]string(nil), symbols...)}
}

// Summary queries the store.
func (r *Reporter) Summary(ctx context.Context) (Summary, error) {
	s, err := r.source.AggregateStats(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate stats: %w", err)
	}
	return NewSummary(s), nil
}

// StartText is the reply to /start.
func (r *Reporter) StartText(ctx context.Context) (string, error) {
	s, err := r.Summary(ctx)
	if err != nil {
		return "", err
	}
	return FormatStart(r.symbols, s), nil
}

// StatsText is the reply to /stats.
func (r *Reporter) StatsText(ctx context.Context) (string, error) {
	s, err := r.Summary(ctx)
	if err != nil {
		return "", err
	}
	return FormatStats(s), nil
}

// FormatStart renders the welcome summary.
func FormatStart(symbols []string, s Summary) string {
	var b strings.Builder
	b.WriteString("🤖 ML-ready Signal Bot ON\n")
	fmt.Fprintf(&b, "Pairs: %s\n", strings.Join(symbols, ", "))
	fmt.Fprintf(&b, "Signals stored: %d (W:%d L:%d)\n", s.Total, s.Wins, s.Losses)
	fmt.Fprintf(&b, "Winrate est: %s%%\n\n", s.WinRate.StringFixed(1))
	b.WriteString("Market data and ML features are being recorded.\n")
	b.WriteString("Use /stats for status.")
	return b.String()
}

// FormatStats renders the status reply.
func FormatStats(s Summary) string {
	var b strings.Builder
	b.WriteString("📊 STATS\n")
	fmt.Fprintf(&b, "Signals stored: %d\n", s.Total)
	fmt.Fprintf(&b, "Wins: %d\n", s.Wins)
	fmt.Fprintf(&b, "Losses: %d\n", s.Losses)
	fmt.Fprintf(&b, "Winrate: %s%%\n\n", s.WinRate.StringFixed(1))
	b.WriteString("Note: results are not auto-labeled.")
	return b.String()
}
