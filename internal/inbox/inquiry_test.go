package inbox

import (
	"context"
	"testing"

	"tradebot/internal/config"
	"tradebot/internal/domain"
)

func TestDetectMatchesKeywordCaseInsensitive(t *testing.T) {
	sel := testSelectors()
	p := newFakePage()
	container := fakeEl("conv")
	summary := fakeEl("summary")
	p.within[container.ID()+"|"+sel.InquirySummary[0]] = summary
	p.texts[summary.ID()] = "New INQUIRY about stainless fittings"

	d := NewDetector(p, sel, nil)
	if !d.Detect(context.Background(), container) {
		t.Fatal("expected keyword match")
	}
}

func TestDetectFallsBackThroughSelectors(t *testing.T) {
	sel := testSelectors()
	if len(sel.InquirySummary) < 2 {
		t.Skip("needs at least two summary selectors")
	}
	p := newFakePage()
	container := fakeEl("conv")
	// Only the second selector yields text.
	summary := fakeEl("summary")
	p.within[container.ID()+"|"+sel.InquirySummary[1]] = summary
	p.texts[summary.ID()] = "Request for quotation"

	d := NewDetector(p, sel, nil)
	if !d.Detect(context.Background(), container) {
		t.Fatal("expected match via fallback selector")
	}
}

func TestDetectNoSummaryIsNotInquiry(t *testing.T) {
	sel := testSelectors()
	p := newFakePage()
	d := NewDetector(p, sel, nil)
	if d.Detect(context.Background(), fakeEl("conv")) {
		t.Fatal("missing summary must not flag an inquiry")
	}
}

func TestStatsMissingSelectorsReadZero(t *testing.T) {
	sel := testSelectors()
	sel.BuyerStats = []config.StatSelector{
		{Name: "profile_views", Selector: ".views"},
		{Name: "rfq_count", Selector: ".rfq"},
	}
	p := newFakePage()
	views := fakeEl("views")
	p.elements[".views"] = []domain.Element{views}
	p.texts[views.ID()] = "Viewed 42 times"

	stats := NewDetector(p, sel, nil).Stats(context.Background())
	if stats["profile_views"] != 42 {
		t.Fatalf("profile_views = %d, want 42", stats["profile_views"])
	}
	if stats["rfq_count"] != 0 {
		t.Fatalf("rfq_count = %d, want 0 for missing element", stats["rfq_count"])
	}
}

