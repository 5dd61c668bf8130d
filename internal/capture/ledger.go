package capture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tradebot/internal/domain"
)

// Ledger is the local SQLite record of captured inquiries. It exists so an
// unreachable webhook never loses a lead; the ledger write and the webhook
// post are independent best-effort deliveries.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLedger(dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create ledger directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open ledger: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db, logger: logger}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migration failed: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inquiries (
		id              TEXT PRIMARY KEY,
		recipient       TEXT NOT NULL,
		message_text    TEXT,
		image_url       TEXT,
		profile_views   INTEGER DEFAULT 0,
		inquiry_count   INTEGER DEFAULT 0,
		rfq_count       INTEGER DEFAULT 0,
		login_days      INTEGER DEFAULT 0,
		spam_count      INTEGER DEFAULT 0,
		blacklist_count INTEGER DEFAULT 0,
		visited_at      DATETIME NOT NULL,
		follow_up_date  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inquiries_followup ON inquiries(follow_up_date);
	CREATE INDEX IF NOT EXISTS idx_inquiries_recipient ON inquiries(recipient);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Insert writes one inquiry record.
func (l *Ledger) Insert(ctx context.Context, rec domain.InquiryRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO inquiries (id, recipient, message_text, image_url,
			profile_views, inquiry_count, rfq_count, login_days, spam_count,
			blacklist_count, visited_at, follow_up_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Recipient, rec.MessageText, rec.ImageURL,
		rec.ProfileViews, rec.InquiryCount, rec.RFQCount, rec.LoginDays,
		rec.SpamCount, rec.Blacklisted, rec.VisitedAt, rec.FollowUpDate,
	)
	return err
}

// List returns the most recently captured inquiries, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]domain.InquiryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, recipient, message_text, image_url,
			profile_views, inquiry_count, rfq_count, login_days, spam_count,
			blacklist_count, visited_at, follow_up_date
		 FROM inquiries ORDER BY visited_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InquiryRecord
	for rows.Next() {
		var rec domain.InquiryRecord
		if err := rows.Scan(&rec.ID, &rec.Recipient, &rec.MessageText, &rec.ImageURL,
			&rec.ProfileViews, &rec.InquiryCount, &rec.RFQCount, &rec.LoginDays,
			&rec.SpamCount, &rec.Blacklisted, &rec.VisitedAt, &rec.FollowUpDate); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DueFollowUps returns inquiries whose follow-up date has passed.
func (l *Ledger) DueFollowUps(ctx context.Context, limit int) ([]domain.InquiryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, recipient, message_text, image_url,
			profile_views, inquiry_count, rfq_count, login_days, spam_count,
			blacklist_count, visited_at, follow_up_date
		 FROM inquiries WHERE follow_up_date <= CURRENT_TIMESTAMP
		 ORDER BY follow_up_date ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InquiryRecord
	for rows.Next() {
		var rec domain.InquiryRecord
		if err := rows.Scan(&rec.ID, &rec.Recipient, &rec.MessageText, &rec.ImageURL,
			&rec.ProfileViews, &rec.InquiryCount, &rec.RFQCount, &rec.LoginDays,
			&rec.SpamCount, &rec.Blacklisted, &rec.VisitedAt, &rec.FollowUpDate); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
