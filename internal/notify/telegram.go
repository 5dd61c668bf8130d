// Package notify sends operator alerts over Telegram. Alerts cover events a
// human should hear about promptly, recovery runs and fatal exits, not
// routine replies.
package notify

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers operator alerts. A nil *Notifier is a working no-op, so
// callers never branch on whether alerting is configured.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// New connects to the Telegram bot API. An empty token disables alerting and
// returns a nil notifier.
func New(token, chatID string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if token == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid notify chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	logger.Info("operator alerts enabled", "bot", bot.Self.UserName)
	return &Notifier{bot: bot, chatID: id, logger: logger}, nil
}

// Alert sends one message, retrying transient errors with backoff. Failures
// are logged and dropped; alerting never blocks the bot.
func (n *Notifier) Alert(format string, args ...any) {
	if n == nil {
		return
	}
	text := fmt.Sprintf(format, args...)
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		msg := tgbotapi.NewMessage(n.chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			lastErr = err
			continue
		}
		return
	}
	n.logger.Warn("operator alert dropped", "err", lastErr)
}
