package alerting

import (
	"context"
	"log/slog"
	"strings"
)

// ConsoleAlerter writes alerts to the structured log. It is the default
// channel when no Telegram token is configured.
type ConsoleAlerter struct {
	logger *slog.Logger
}

// NewConsoleAlerter creates a new console alerter.
func NewConsoleAlerter(logger *slog.Logger) *ConsoleAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAlerter{logger: logger}
}

// Name returns the name of the alerter.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert logs the first line of message as the record message and the
// rest as attributes.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	headline, body, _ := strings.Cut(message, "\n")

	attrs := make([]any, 0, len(fields)+4)
	attrs = append(attrs, "severity", severity.String())
	if body != "" {
		attrs = append(attrs, "body", strings.TrimSpace(body))
	}
	attrs = append(attrs, fields...)

	level := slog.LevelInfo
	switch severity {
	case SeverityCritical:
		level = slog.LevelError
	case SeverityHigh, SeverityWarning:
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "[ALERT] "+headline, attrs...)
	return nil
}
