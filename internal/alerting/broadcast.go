package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tathienbao/signal-bot/internal/types"
)

// Sender delivers text to a single chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Broadcaster sends every alert to all registered recipients.
// Delivery is attempted once per recipient; one failure never blocks
// the others.
type Broadcaster struct {
	sender   Sender
	registry Registry
	logger   *slog.Logger
}

// NewBroadcaster creates a broadcaster over sender and registry.
func NewBroadcaster(sender Sender, registry Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{sender: sender, registry: registry, logger: logger}
}

// Name returns the name of the alerter.
func (b *Broadcaster) Name() string {
	return "telegram"
}

// Alert sends message to every recipient. Signal notifications are sent
// as-is; other severities get a header and the fields appended.
func (b *Broadcaster) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	recipients, err := b.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrDelivery, err)
	}
	if len(recipients) == 0 {
		b.logger.Debug("no recipients registered, alert dropped", "severity", severity.String())
		return nil
	}

	text := formatMessage(severity, message, fields...)

	var wg sync.WaitGroup
	errCh := make(chan error, len(recipients))
	for _, id := range recipients {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
				b.logger.Warn("delivery failed", "chat_id", chatID, "error", err)
				errCh <- err
			}
		}(id)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d recipients failed: %w", types.ErrDelivery, len(errs), len(recipients), errors.Join(errs...))
}

func formatMessage(severity Severity, message string, fields ...any) string {
	if severity == SeverityInfo {
		return message
	}
	text := fmt.Sprintf("%s [%s]\n%s", severity.Emoji(), severity.String(), message)
	if details := FormatFields(fields...); details != "" {
		text += "\n\n" + details
	}
	return text
}
