package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/infrastructure/render"
	"HeadlineRadar/internal/ports"
)

// messageLimit stays under the Bot API cap of 4096 characters.
const messageLimit = 4000

// Notifier sends report digests to a Telegram chat via bot API.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	handle string
	loc    *time.Location
	logger *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier connects to the public Bot API.
func NewNotifier(botToken, chatID string, loc *time.Location, logger *slog.Logger) (*Notifier, error) {
	return NewNotifierWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second}, loc, logger)
}

// NewNotifierWithEndpoint targets a custom Bot API endpoint, e.g. a local proxy.
// chatID is either a numeric id or an @channel handle.
func NewNotifierWithEndpoint(botToken, chatID, endpoint string, client *http.Client, loc *time.Location, logger *slog.Logger) (*Notifier, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}

	n := &Notifier{loc: loc, logger: logger}
	if strings.HasPrefix(chatID, "@") {
		n.handle = chatID
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse telegram chat id %q: %w", chatID, err)
		}
		n.chatID = id
	}

	api, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	api.Debug = false
	n.api = api

	if logger != nil {
		logger.Info("telegram notifier initialized", "bot_username", api.Self.UserName)
	}
	return n, nil
}

// Name identifies the channel in logs.
func (n *Notifier) Name() string {
	return "telegram"
}

// PublishReport sends the digest, split over several messages when long.
func (n *Notifier) PublishReport(ctx context.Context, report domain.Report) error {
	chunks := render.SplitMessage(render.Digest(report, n.loc), messageLimit)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.api.Send(n.message(chunk)); err != nil {
			return fmt.Errorf("send telegram message %d/%d: %w", i+1, len(chunks), err)
		}
	}
	if n.logger != nil {
		n.logger.Debug("telegram digest sent", "messages", len(chunks))
	}
	return nil
}

func (n *Notifier) message(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if n.handle != "" {
		msg = tgbotapi.NewMessageToChannel(n.handle, text)
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}
	msg.DisableWebPagePreview = true
	return msg
}
