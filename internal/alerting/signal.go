package alerting

import (
	"fmt"

	"github.com/tathienbao/signal-bot/internal/types"
)

// FormatSignal renders the outbound message for a fired signal.
func FormatSignal(ev types.SignalEvent) string {
	return fmt.Sprintf("📊 %s\nPrice: %.5f\nRSI2: %.1f\nStoch: %.1f\nVolume Ratio: %.2f\nSignal: %s\n\nFeatures saved for ML training.",
		ev.Symbol,
		ev.EntryPrice,
		ev.RSI2,
		ev.StochK,
		ev.VolumeRatio,
		ev.Direction.Label(),
	)
}

// SignalFields returns structured fields describing ev for log-style alerters.
func SignalFields(ev types.SignalEvent) []any {
	return []any{
		"symbol", ev.Symbol,
		"direction", ev.Direction.String(),
		"price", fmt.Sprintf("%.5f", ev.EntryPrice),
		"bar", ev.Timestamp.Format("2006-01-02 15:04"),
	}
}
