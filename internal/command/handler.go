// Package command answers chat commands and manages notification
// subscriptions.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tathienbao/signal-bot/internal/alerting"
	"github.com/tathienbao/signal-bot/internal/metrics"
	"github.com/tathienbao/signal-bot/internal/stats"
	"github.com/tathienbao/signal-bot/internal/types"
)

// Supported commands.
const (
	CmdStart = "start"
	CmdStats = "stats"
	CmdStop  = "stop"
	CmdHelp  = "help"
)

const helpText = `Commands:
/start - subscribe to signals and show a summary
/stats - signal counts and winrate
/stop - unsubscribe from signals
/help - this message`

// Handler maps a command to its reply.
type Handler struct {
	// RegisterOnStart controls whether /start and /stop change the
	// recipient registry. When false, notifications only reach the
	// preconfigured chats.
	RegisterOnStart bool

	registry alerting.Registry
	reporter *stats.Reporter
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewHandler creates a command handler.
func NewHandler(registry alerting.Registry, reporter *stats.Reporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		RegisterOnStart: true,
		registry:        registry,
		reporter:        reporter,
		recorder:        metrics.NewRecorder(),
		logger:          logger,
	}
}

// Handle processes text sent from chatID. Plain text that is not a
// command yields an empty reply and no error.
func (h *Handler) Handle(ctx context.Context, chatID int64, text string) (string, error) {
	cmd, ok := ParseCommand(text)
	if !ok {
		return "", nil
	}
	h.recorder.RecordCommand(cmd)

	switch cmd {
	case CmdStart:
		if h.RegisterOnStart {
			added, err := h.registry.Add(ctx, chatID)
			if err != nil {
				return "", fmt.Errorf("register chat %d: %w", chatID, err)
			}
			if added {
				h.logger.Info("recipient registered", "chat_id", chatID)
				h.recordRecipients(ctx)
			}
		}
		return h.reporter.StartText(ctx)

	case CmdStats:
		return h.reporter.StatsText(ctx)

	case CmdStop:
		if !h.RegisterOnStart {
			return "Notifications are sent to preconfigured chats only.", nil
		}
		removed, err := h.registry.Remove(ctx, chatID)
		if err != nil {
			return "", fmt.Errorf("unregister chat %d: %w", chatID, err)
		}
		if removed {
			h.logger.Info("recipient unregistered", "chat_id", chatID)
			h.recordRecipients(ctx)
		}
		return "🔕 Notifications stopped. Send /start to resume.", nil

	case CmdHelp:
		return helpText, nil

	default:
		return "Unknown command.\n\n" + helpText, fmt.Errorf("%w: /%s", types.ErrUnknownCommand, cmd)
	}
}

func (h *Handler) recordRecipients(ctx context.Context) {
	ids, err := h.registry.List(ctx)
	if err != nil {
		return
	}
	h.recorder.RecordRecipients(len(ids))
}

// ParseCommand extracts the lower-cased command name from text such as
// "/stats" or "/stats@my_bot extra".
func ParseCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}
