// Package telegram is a small Bot API client covering the calls the bot
// needs: sending text messages and long-polling for updates.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/tathienbao/signal-bot/internal/types"
)

// DefaultBaseURL is the public Bot API host.
const DefaultBaseURL = "https://api.telegram.org"

// Config holds Bot API client settings.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	// MessagesPerSecond caps outgoing sendMessage calls. Zero disables the limit.
	MessagesPerSecond float64
}

// Client talks to the Telegram Bot API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

// Update is one entry from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// New creates a Bot API client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: telegram token is empty", types.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(base+"/bot"+cfg.Token).
			SetHeader("Content-Type", "application/json"),
		timeout: timeout,
		logger:  logger,
	}
	if cfg.MessagesPerSecond > 0 {
		burst := int(cfg.MessagesPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), burst)
	}
	return c, nil
}

// SendMessage posts plain text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: chat %d: %w", types.ErrDelivery, chatID, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out apiResponse[Message]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: chatID, Text: text}).
		SetResult(&out).
		SetError(&out).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("%w: chat %d: %w", types.ErrDelivery, chatID, err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("%w: chat %d: status %d: %s", types.ErrDelivery, chatID, resp.StatusCode(), out.Description)
	}

	c.logger.Debug("message sent", "chat_id", chatID, "message_id", out.Result.MessageID)
	return nil
}

// GetUpdates long-polls for updates after offset. The call blocks for up
// to wait on the server side.
func (c *Client) GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, wait+c.timeout)
	defer cancel()

	var out apiResponse[[]Update]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":          strconv.FormatInt(offset, 10),
			"timeout":         strconv.Itoa(int(wait / time.Second)),
			"allowed_updates": `["message"]`,
		}).
		SetResult(&out).
		SetError(&out).
		Get("/getUpdates")
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	if resp.IsError() || !out.OK {
		return nil, fmt.Errorf("get updates: status %d: %s", resp.StatusCode(), out.Description)
	}
	return out.Result, nil
}
