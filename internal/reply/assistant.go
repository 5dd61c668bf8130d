package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/domain"
)

// Assistant drives the page's embedded AI-assist affordance and reads the
// draft it produces. It mutates shared UI state, so hardened configurations
// leave it disabled and the chain skips straight to canned replies.
type Assistant struct {
	page        domain.Page
	sel         config.SelectorsConfig
	draftWait   time.Duration
	pollEvery   time.Duration
	settleDelay time.Duration
	logger      *slog.Logger
}

func NewAssistant(page domain.Page, sel config.SelectorsConfig, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		page:        page,
		sel:         sel,
		draftWait:   30 * time.Second,
		pollEvery:   time.Second,
		settleDelay: 2 * time.Second,
		logger:      logger,
	}
}

func (a *Assistant) Name() string                  { return "assistant-ui" }
func (a *Assistant) Provenance() domain.Provenance { return domain.ProvenanceAssistant }

func (a *Assistant) Generate(ctx context.Context, _ domain.Query) (string, error) {
	entry, err := a.page.Find(ctx, a.sel.AssistantEntry)
	if err != nil {
		return "", fmt.Errorf("assistant entry: %w", err)
	}
	if err := a.page.Click(ctx, entry); err != nil {
		return "", fmt.Errorf("open assistant: %w", err)
	}

	use, err := a.waitFor(ctx, a.sel.AssistantUse)
	if err != nil {
		return "", fmt.Errorf("assistant draft: %w", err)
	}
	if err := a.page.Click(ctx, use); err != nil {
		return "", fmt.Errorf("accept draft: %w", err)
	}

	// Let the accepted draft land in the send box before reading it back.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(a.settleDelay):
	}

	draft, err := a.page.Find(ctx, a.sel.AssistantDraft)
	if err != nil {
		return "", fmt.Errorf("read draft: %w", err)
	}
	text, err := a.page.Text(ctx, draft)
	if err != nil {
		return "", fmt.Errorf("read draft text: %w", err)
	}
	return text, nil
}

// waitFor polls for a selector until it appears or the wait budget runs out.
func (a *Assistant) waitFor(ctx context.Context, selector string) (domain.Element, error) {
	deadline := time.Now().Add(a.draftWait)
	for {
		el, err := a.page.Find(ctx, selector)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, domain.ErrElementNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%q did not appear within %s: %w", selector, a.draftWait, domain.ErrElementNotFound)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.pollEvery):
		}
	}
}
