package capture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"tradebot/internal/domain"
)

func TestCaptureBuildsRecordWithFollowUpDate(t *testing.T) {
	var received atomic.Pointer[domain.InquiryRecord]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec domain.InquiryRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received.Store(&rec)
	}))
	defer srv.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(ServiceConfig{
		Webhook:      NewWebhook(srv.URL, 5*time.Second),
		FollowUpDays: 3,
		Now:          func() time.Time { return now },
	})

	svc.Capture(context.Background(), "buyer-a",
		domain.Payload{Text: "Need a quotation", Kind: domain.KindInquiry},
		map[string]int{"profile_views": 12, "rfq_count": 2})

	rec := received.Load()
	if rec == nil {
		t.Fatal("webhook never received the record")
	}
	if rec.ID == "" {
		t.Fatal("record has no id")
	}
	if rec.Recipient != "buyer-a" || rec.MessageText != "Need a quotation" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ProfileViews != 12 || rec.RFQCount != 2 {
		t.Fatalf("stats not carried: %+v", rec)
	}
	want := now.AddDate(0, 0, 3)
	if !rec.FollowUpDate.Equal(want) {
		t.Fatalf("follow_up_date = %v, want %v", rec.FollowUpDate, want)
	}
	if !rec.VisitedAt.Equal(now) {
		t.Fatalf("visited_at = %v, want %v", rec.VisitedAt, now)
	}
}

func TestCaptureWebhookFailureStillWritesLedger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "crm down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ledger, err := NewLedger(filepath.Join(t.TempDir(), "inquiries.db"), nil)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	defer ledger.Close()

	svc := NewService(ServiceConfig{
		Webhook: NewWebhook(srv.URL, 2*time.Second),
		Ledger:  ledger,
	})
	svc.Capture(context.Background(), "buyer-b", domain.Payload{Text: "RFQ"}, nil)

	recs, err := ledger.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("ledger records = %d, want 1 despite webhook failure", len(recs))
	}
	if recs[0].Recipient != "buyer-b" {
		t.Fatalf("recipient = %q", recs[0].Recipient)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	ledger, err := NewLedger(filepath.Join(t.TempDir(), "inquiries.db"), nil)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	defer ledger.Close()

	now := time.Now().UTC().Truncate(time.Second)
	rec := domain.InquiryRecord{
		ID:           "rec-1",
		Recipient:    "buyer-c",
		MessageText:  "price for 200 units",
		ImageURL:     "https://cdn.example.test/x.jpg",
		ProfileViews: 5,
		InquiryCount: 3,
		VisitedAt:    now,
		FollowUpDate: now.AddDate(0, 0, 3),
	}
	if err := ledger.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	recs, err := ledger.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	got := recs[0]
	if got.ID != rec.ID || got.MessageText != rec.MessageText || got.InquiryCount != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestLedgerDueFollowUps(t *testing.T) {
	ledger, err := NewLedger(filepath.Join(t.TempDir(), "inquiries.db"), nil)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	defer ledger.Close()

	now := time.Now().UTC()
	past := domain.InquiryRecord{ID: "past", Recipient: "a", VisitedAt: now.AddDate(0, 0, -5), FollowUpDate: now.AddDate(0, 0, -2)}
	future := domain.InquiryRecord{ID: "future", Recipient: "b", VisitedAt: now, FollowUpDate: now.AddDate(0, 0, 3)}
	for _, r := range []domain.InquiryRecord{past, future} {
		if err := ledger.Insert(context.Background(), r); err != nil {
			t.Fatalf("Insert %s: %v", r.ID, err)
		}
	}

	due, err := ledger.DueFollowUps(context.Background(), 10)
	if err != nil {
		t.Fatalf("DueFollowUps: %v", err)
	}
	if len(due) != 1 || due[0].ID != "past" {
		t.Fatalf("due = %+v, want only the past record", due)
	}
}
