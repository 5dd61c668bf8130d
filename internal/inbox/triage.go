package inbox

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/domain"
)

// Triage scans the inbox for unread conversations eligible for a reply now.
//
// Eligibility is fail-open: a conversation with an unparseable activity time
// falls back to the label rule alone, and an undeterminable label counts as
// no label. Starving the queue is worse than an occasional double-visit.
type Triage struct {
	page       domain.Page
	sel        config.SelectorsConfig
	staleAfter time.Duration
	inquiry    *Detector
	now        func() time.Time
	logger     *slog.Logger
}

// TriageConfig wires the triage scanner.
type TriageConfig struct {
	Page       domain.Page
	Selectors  config.SelectorsConfig
	StaleAfter time.Duration // labeled conversations older than this are reclaimed
	Inquiry    *Detector
	Now        func() time.Time // injectable clock
	Logger     *slog.Logger
}

func NewTriage(cfg TriageConfig) *Triage {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 180 * time.Second
	}
	return &Triage{
		page:       cfg.Page,
		sel:        cfg.Selectors,
		staleAfter: cfg.StaleAfter,
		inquiry:    cfg.Inquiry,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
}

// Scan returns the eligible unread conversations in inbox order. Handles are
// only valid until the next navigation; the caller processes at most the
// first one per loop iteration.
func (t *Triage) Scan(ctx context.Context) ([]domain.Conversation, error) {
	badges, err := t.page.FindAll(ctx, t.sel.UnreadBadge)
	if err != nil {
		return nil, err
	}

	var eligible []domain.Conversation
	for _, badge := range badges {
		conv, err := t.inspect(ctx, badge)
		if err != nil {
			if domain.IsSessionError(err) {
				return nil, err
			}
			// Transient render race on one entry; the rest still count.
			t.logger.Debug("skipping unreadable inbox entry", "badge", badge.ID(), "err", err)
			continue
		}
		if t.eligible(conv) {
			eligible = append(eligible, conv)
		}
	}
	return eligible, nil
}

// inspect builds the ephemeral conversation view around one unread badge.
func (t *Triage) inspect(ctx context.Context, badge domain.Element) (domain.Conversation, error) {
	container, err := t.page.Ancestor(ctx, badge, t.sel.BadgeAncestors)
	if err != nil {
		return domain.Conversation{}, err
	}

	conv := domain.Conversation{Badge: badge, Container: container}

	if name, err := t.page.Attribute(ctx, container, t.sel.RecipientAttr); err == nil {
		conv.Recipient = name
	} else if domain.IsSessionError(err) {
		return domain.Conversation{}, err
	}

	conv.HasLabel = t.hasLabel(ctx, container)
	conv.LastActivity, conv.TimeParsed = t.lastActivity(ctx, container)

	if t.inquiry != nil {
		conv.IsInquiry = t.inquiry.Detect(ctx, container)
	}
	return conv, nil
}

// hasLabel fails open: when the label cannot be determined, the conversation
// counts as unlabeled so it is never silently starved.
func (t *Triage) hasLabel(ctx context.Context, container domain.Element) bool {
	_, err := t.page.FindWithin(ctx, container, t.sel.LabelTag)
	return err == nil
}

// lastActivity parses the HH:MM time-of-day shown on the entry, combined
// with today's date (the UI omits dates for same-day messages).
func (t *Triage) lastActivity(ctx context.Context, container domain.Element) (time.Time, bool) {
	el, err := t.page.FindWithin(ctx, container, t.sel.ContactTime)
	if err != nil {
		return time.Time{}, false
	}
	raw, err := t.page.Text(ctx, el)
	if err != nil {
		return time.Time{}, false
	}
	return parseClockTime(raw, t.now())
}

// eligible applies the triage rule: reply when unlabeled, or when a labeled
// conversation has sat unresolved past the stale threshold.
func (t *Triage) eligible(conv domain.Conversation) bool {
	if !conv.HasLabel {
		return true
	}
	if !conv.TimeParsed {
		// Labeled and no usable timestamp: leave it to the human.
		return false
	}
	return t.now().Sub(conv.LastActivity) > t.staleAfter
}

// parseClockTime combines an "HH:MM" time-of-day with the reference date.
func parseClockTime(raw string, ref time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	clock, err := time.Parse("15:04", raw)
	if err != nil {
		return time.Time{}, false
	}
	ts := time.Date(ref.Year(), ref.Month(), ref.Day(),
		clock.Hour(), clock.Minute(), 0, 0, ref.Location())
	return ts, true
}
