package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradebot/internal/domain"
	"tradebot/internal/metrics"
)

// State is the control loop's current phase.
type State string

const (
	StatePolling    State = "polling"
	StateHandling   State = "handling"
	StateRecovering State = "recovering"
	StateTerminated State = "terminated"
)

// Scanner finds the unread conversations eligible for a reply.
type Scanner interface {
	Scan(ctx context.Context) ([]domain.Conversation, error)
}

// Classifier extracts the payload of the open conversation.
type Classifier interface {
	Classify(ctx context.Context) (domain.Payload, error)
}

// Replier produces exactly one reply per conversation turn.
type Replier interface {
	Reply(ctx context.Context, q domain.Query) domain.ReplyCandidate
	Fallback(ctx context.Context) domain.ReplyCandidate
}

// Sender delivers a reply into the open conversation.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// HealthChecker probes the browser session.
type HealthChecker interface {
	Check(ctx context.Context) bool
}

// Recoverer replaces a dead session with a fresh one.
type Recoverer interface {
	Recover(ctx context.Context, state domain.SessionState) (domain.SessionState, error)
}

// InquirySink records captured inquiries. Capture is fire-and-forget; the
// sink never reports failure to the loop.
type InquirySink interface {
	Capture(ctx context.Context, recipient string, payload domain.Payload, stats map[string]int)
}

// StatsFunc scrapes buyer profile counters from the open conversation view.
type StatsFunc func(ctx context.Context) map[string]int

// LoopConfig wires the control loop.
type LoopConfig struct {
	Page       domain.Page
	Scanner    Scanner
	Classifier Classifier
	Replier    Replier
	Sender     Sender
	Monitor    HealthChecker
	Recoverer  Recoverer
	Sink       InquirySink // optional
	Stats      StatsFunc   // optional

	MainURL string

	Poll      JitterPolicy // between idle polling cycles
	Refresh   JitterPolicy // after a periodic page refresh
	OpenPause JitterPolicy // after opening a conversation, before reading it

	IdleCyclesBeforeRefresh int
	MaxConsecutiveErrors    int
	HealthInterval          time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Loop is the top-level control loop. It owns the session state and drives
// polling, handling, and recovery until the context ends or recovery is
// exhausted.
type Loop struct {
	cfg    LoopConfig
	state  State
	logger *slog.Logger
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdleCyclesBeforeRefresh <= 0 {
		cfg.IdleCyclesBeforeRefresh = 7
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 5
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 5 * time.Minute
	}
	return &Loop{cfg: cfg, state: StatePolling, logger: cfg.Logger}
}

// State returns the loop's current phase.
func (l *Loop) State() State { return l.state }

// Run drives the loop until ctx ends (returns nil, a clean shutdown) or a
// fatal condition such as exhausted recovery (returns the fatal error).
func (l *Loop) Run(ctx context.Context, session domain.SessionState) error {
	idleCycles := 0
	consecutiveErrors := 0
	l.state = StatePolling
	l.logger.Info("control loop started", "pid", session.PID)

	for {
		if ctx.Err() != nil {
			l.state = StateTerminated
			l.logger.Info("control loop stopped")
			return nil
		}

		// Periodic liveness probe, independent of polling outcomes.
		if session.HealthCheckDue(l.cfg.Now(), l.cfg.HealthInterval) {
			if l.cfg.Monitor.Check(ctx) {
				session.LastHealthCheck = l.cfg.Now()
			} else {
				metrics.HealthFailures.Inc()
				session = session.MarkInvalid(l.cfg.Now())
			}
		}

		if !session.Valid {
			l.state = StateRecovering
			next, err := l.recover(ctx, session)
			if err != nil {
				if ctx.Err() != nil {
					l.state = StateTerminated
					return nil
				}
				l.state = StateTerminated
				return err
			}
			session = next
			idleCycles = 0
			consecutiveErrors = 0
			l.state = StatePolling
			continue
		}

		scanStart := l.cfg.Now()
		convs, err := l.cfg.Scanner.Scan(ctx)
		metrics.ScansTotal.Inc()
		metrics.ScanLatency.Observe(time.Since(scanStart).Seconds())
		if err != nil {
			if domain.IsSessionError(err) {
				l.logger.Warn("inbox scan lost the session", "err", err)
				session = session.MarkInvalid(l.cfg.Now())
				continue
			}
			l.logger.Error("inbox scan failed", "err", err)
			metrics.LoopErrors.Inc()
			consecutiveErrors++
			session = l.maybeResettle(ctx, session, &consecutiveErrors)
			l.cfg.Poll.Sleep(ctx)
			continue
		}
		metrics.UnreadGauge.Set(int64(len(convs)))

		if len(convs) == 0 {
			idleCycles++
			if idleCycles >= l.cfg.IdleCyclesBeforeRefresh {
				l.logger.Debug("idle refresh", "cycles", idleCycles)
				if err := l.cfg.Page.Reload(ctx); err != nil {
					if domain.IsSessionError(err) {
						session = session.MarkInvalid(l.cfg.Now())
						continue
					}
					l.logger.Warn("idle refresh failed", "err", err)
				}
				idleCycles = 0
				l.cfg.Refresh.Sleep(ctx)
			} else {
				l.cfg.Poll.Sleep(ctx)
			}
			continue
		}

		// Handles go stale across navigations, so only the first eligible
		// conversation is processed per cycle; the rest are picked up by the
		// next scan.
		idleCycles = 0
		l.state = StateHandling
		outcome, err := l.handle(ctx, convs[0])
		l.state = StatePolling

		switch outcome {
		case domain.OutcomeHandled:
			consecutiveErrors = 0
			session = session.MarkHealthy(l.cfg.Now())
		case domain.OutcomeSkip:
			l.logger.Debug("conversation skipped", "recipient", convs[0].Recipient)
		case domain.OutcomeRetry:
			if domain.IsSessionError(err) {
				l.logger.Warn("conversation handling lost the session", "err", err)
				session = session.MarkInvalid(l.cfg.Now())
				continue
			}
			l.logger.Error("conversation handling failed", "recipient", convs[0].Recipient, "err", err)
			metrics.LoopErrors.Inc()
			consecutiveErrors++
			session = l.maybeResettle(ctx, session, &consecutiveErrors)
		}

		l.returnToInbox(ctx)
		l.cfg.Poll.Sleep(ctx)
	}
}

// handle processes one conversation end to end. The returned error is only
// meaningful for OutcomeRetry.
func (l *Loop) handle(ctx context.Context, conv domain.Conversation) (domain.Outcome, error) {
	start := time.Now()
	l.logger.Info("handling conversation",
		"recipient", conv.Recipient, "inquiry", conv.IsInquiry)

	if err := l.cfg.Page.Click(ctx, conv.Badge); err != nil {
		if errors.Is(err, domain.ErrElementNotFound) {
			// The entry vanished between scan and click. Not an error run.
			return domain.OutcomeSkip, nil
		}
		return domain.OutcomeRetry, fmt.Errorf("open conversation: %w", err)
	}
	l.cfg.OpenPause.Sleep(ctx)

	payload, err := l.cfg.Classifier.Classify(ctx)
	if err != nil {
		return domain.OutcomeRetry, fmt.Errorf("classify message: %w", err)
	}

	var candidate domain.ReplyCandidate
	if payload.Kind == domain.KindBusinessCard {
		// Business cards carry no query; acknowledge and move on.
		candidate = l.cfg.Replier.Fallback(ctx)
	} else {
		if payload.Empty() {
			payload = domain.DefaultPayload()
		}
		candidate = l.cfg.Replier.Reply(ctx, domain.Query{Text: payload.Text, ImageURL: payload.ImageURL})
	}

	if err := l.cfg.Sender.Send(ctx, conv.Recipient, candidate.Text); err != nil {
		if errors.Is(err, domain.ErrElementNotFound) {
			return domain.OutcomeSkip, nil
		}
		return domain.OutcomeRetry, fmt.Errorf("send reply: %w", err)
	}

	metrics.ConversationsTotal.Inc()
	metrics.ReplyCounter(string(candidate.Source)).Inc()
	metrics.ReplyLatency.Observe(time.Since(start).Seconds())

	// Capture strictly after a confirmed send so the ledger never records an
	// inquiry the buyer got no reply to.
	if conv.IsInquiry && l.cfg.Sink != nil {
		var stats map[string]int
		if l.cfg.Stats != nil {
			stats = l.cfg.Stats(ctx)
		}
		l.cfg.Sink.Capture(ctx, conv.Recipient, payload, stats)
	}

	return domain.OutcomeHandled, nil
}

// recover delegates to the recovery controller and re-homes the page.
func (l *Loop) recover(ctx context.Context, session domain.SessionState) (domain.SessionState, error) {
	next, err := l.cfg.Recoverer.Recover(ctx, session)
	if err != nil {
		return next, err
	}
	metrics.RecoveriesTotal.Inc()
	l.returnToInbox(ctx)
	return next, nil
}

// maybeResettle handles an unbroken run of non-session errors. Past the
// threshold the page is re-navigated, which clears most stuck-UI states, and
// the session is probed; a failed probe escalates to recovery.
func (l *Loop) maybeResettle(ctx context.Context, session domain.SessionState, consecutiveErrors *int) domain.SessionState {
	if *consecutiveErrors < l.cfg.MaxConsecutiveErrors {
		return session
	}
	l.logger.Warn("error threshold reached, re-navigating", "errors", *consecutiveErrors)
	*consecutiveErrors = 0

	if err := l.cfg.Page.Navigate(ctx, l.cfg.MainURL); err != nil {
		l.logger.Warn("re-navigation failed", "err", err)
		return session.MarkInvalid(l.cfg.Now())
	}
	if !l.cfg.Monitor.Check(ctx) {
		metrics.HealthFailures.Inc()
		return session.MarkInvalid(l.cfg.Now())
	}
	return session
}

// returnToInbox brings the page back to the inbox view. Best effort; a
// failure here surfaces on the next scan.
func (l *Loop) returnToInbox(ctx context.Context) {
	if err := l.cfg.Page.Navigate(ctx, l.cfg.MainURL); err != nil {
		l.logger.Warn("return to inbox failed", "err", err)
	}
}
