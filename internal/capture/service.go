// Package capture records detected sales inquiries for later follow-up.
// Capture sits off the reply path: it runs only after a confirmed send, and
// no failure in here ever disturbs the conversation flow.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradebot/internal/domain"
	"tradebot/internal/metrics"
)

// Service builds inquiry records and fans them out to the webhook and the
// local ledger. Both deliveries are best effort and independent.
type Service struct {
	webhook      *Webhook // nil when no webhook is configured
	ledger       *Ledger  // nil when no ledger is configured
	followUpDays int
	now          func() time.Time
	logger       *slog.Logger
}

type ServiceConfig struct {
	Webhook      *Webhook
	Ledger       *Ledger
	FollowUpDays int
	Now          func() time.Time
	Logger       *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FollowUpDays <= 0 {
		cfg.FollowUpDays = 3
	}
	return &Service{
		webhook:      cfg.Webhook,
		ledger:       cfg.Ledger,
		followUpDays: cfg.FollowUpDays,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
}

// Capture records one inquiry. Fire-and-forget: failures are logged, never
// returned, and a webhook miss does not block the ledger write or vice versa.
func (s *Service) Capture(ctx context.Context, recipient string, payload domain.Payload, stats map[string]int) {
	now := s.now()
	rec := domain.InquiryRecord{
		ID:           uuid.NewString(),
		Recipient:    recipient,
		MessageText:  payload.Text,
		ImageURL:     payload.ImageURL,
		ProfileViews: stats["profile_views"],
		InquiryCount: stats["inquiry_count"],
		RFQCount:     stats["rfq_count"],
		LoginDays:    stats["login_days"],
		SpamCount:    stats["spam_count"],
		Blacklisted:  stats["blacklist_count"],
		VisitedAt:    now,
		FollowUpDate: now.AddDate(0, 0, s.followUpDays),
	}

	if s.webhook != nil {
		if err := s.webhook.Post(ctx, rec); err != nil {
			s.logger.Warn("inquiry webhook delivery failed", "id", rec.ID, "err", err)
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Insert(ctx, rec); err != nil {
			s.logger.Warn("inquiry ledger write failed", "id", rec.ID, "err", err)
		}
	}
	metrics.InquiriesCaptured.Inc()
	s.logger.Info("inquiry captured",
		"id", rec.ID, "recipient", recipient, "follow_up", rec.FollowUpDate.Format("2006-01-02"))
}
