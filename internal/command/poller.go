package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tathienbao/signal-bot/internal/alerting"
	"github.com/tathienbao/signal-bot/internal/telegram"
	"github.com/tathienbao/signal-bot/internal/types"
)

// Updater long-polls for incoming chat updates.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]telegram.Update, error)
}

// Poller feeds chat updates to a Handler and sends the replies.
type Poller struct {
	updates Updater
	sender  alerting.Sender
	handler *Handler
	wait    time.Duration
	backoff time.Duration
	offset  int64
	logger  *slog.Logger
}

// NewPoller creates a poller. wait is the server-side long-poll duration.
func NewPoller(updates Updater, sender alerting.Sender, handler *Handler, wait time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		updates: updates,
		sender:  sender,
		handler: handler,
		wait:    wait,
		backoff: 5 * time.Second,
		logger:  logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("command poller started")
	for {
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("command poller stopped")
				return nil
			}
			p.logger.Warn("poll failed", "error", err, "retry_in", p.backoff)
			select {
			case <-ctx.Done():
				p.logger.Info("command poller stopped")
				return nil
			case <-time.After(p.backoff):
			}
		}
	}
}

// PollOnce fetches one batch of updates and answers each command.
// Reply failures are logged; only the fetch error is returned.
func (p *Poller) PollOnce(ctx context.Context) error {
	updates, err := p.updates.GetUpdates(ctx, p.offset, p.wait)
	if err != nil {
		return err
	}

	for _, u := range updates {
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		if u.Message == nil {
			continue
		}
		p.dispatch(ctx, u.Message)
	}
	return nil
}

func (p *Poller) dispatch(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	reply, err := p.handler.Handle(ctx, chatID, msg.Text)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, types.ErrUnknownCommand) {
			level = slog.LevelDebug
		}
		p.logger.Log(ctx, level, "command failed", "chat_id", chatID, "text", msg.Text, "error", err)
	}
	if reply == "" {
		return
	}
	if err := p.sender.SendMessage(ctx, chatID, reply); err != nil {
		p.logger.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

// Offset returns the next update ID to request.
func (p *Poller) Offset() int64 {
	return p.offset
}
