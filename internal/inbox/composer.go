package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/domain"
)

// PauseFunc sleeps a jittered interval between UI actions. Tests inject a
// no-op to run deterministically.
type PauseFunc func(ctx context.Context, min, max time.Duration)

// Composer types a reply into the open conversation's send box and clicks
// send, with human-ish pacing between the steps.
type Composer struct {
	page   domain.Page
	sel    config.SelectorsConfig
	pause  PauseFunc
	logger *slog.Logger
}

func NewComposer(page domain.Page, sel config.SelectorsConfig, pause PauseFunc, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if pause == nil {
		pause = func(ctx context.Context, min, max time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(min):
			}
		}
	}
	return &Composer{page: page, sel: sel, pause: pause, logger: logger}
}

// Send delivers one message. An error here means the send is unconfirmed;
// the caller must not treat the conversation as handled.
func (c *Composer) Send(ctx context.Context, recipient, text string) error {
	box, err := c.page.Find(ctx, c.sel.SendBox)
	if err != nil {
		return fmt.Errorf("send box: %w", err)
	}

	if err := c.page.Clear(ctx, box); err != nil {
		return fmt.Errorf("clear send box: %w", err)
	}
	c.pause(ctx, 500*time.Millisecond, 2*time.Second)

	if err := c.page.Type(ctx, box, text); err != nil {
		return fmt.Errorf("type reply: %w", err)
	}
	c.pause(ctx, time.Second, 3*time.Second)

	button, err := c.page.Find(ctx, c.sel.SendButton)
	if err != nil {
		return fmt.Errorf("send button: %w", err)
	}
	if err := c.page.Click(ctx, button); err != nil {
		return fmt.Errorf("click send: %w", err)
	}

	c.logger.Info("message sent", "recipient", recipient, "len", len(text))
	return nil
}
