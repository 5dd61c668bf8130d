package inbox

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"tradebot/internal/config"
	"tradebot/internal/domain"
)

// Detector flags conversations that look like sales inquiries. It is a
// best-effort heuristic: a false negative only skips capture, a false
// positive only sends an extra record, so every failure path returns false
// or a zeroed counter rather than an error.
type Detector struct {
	page     domain.Page
	summary  []string // ordered selector fallback; class names drift between views
	keywords []string
	stats    []config.StatSelector
	logger   *slog.Logger
}

func NewDetector(page domain.Page, sel config.SelectorsConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	keywords := make([]string, len(sel.InquiryKeywords))
	for i, k := range sel.InquiryKeywords {
		keywords[i] = strings.ToLower(k)
	}
	return &Detector{
		page:     page,
		summary:  sel.InquirySummary,
		keywords: keywords,
		stats:    sel.BuyerStats,
		logger:   logger,
	}
}

// Detect inspects the conversation summary line for inquiry keywords, trying
// each candidate selector in order until one yields text.
func (d *Detector) Detect(ctx context.Context, container domain.Element) bool {
	text := d.summaryText(ctx, container)
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) summaryText(ctx context.Context, container domain.Element) string {
	for _, selector := range d.summary {
		el, err := d.page.FindWithin(ctx, container, selector)
		if err != nil {
			continue
		}
		text, err := d.page.Text(ctx, el)
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var digitsPattern = regexp.MustCompile(`\d+`)

// Stats scrapes the buyer profile counters from the open conversation view.
// Missing or unparsable stats read as zero; a miss never blocks capture.
func (d *Detector) Stats(ctx context.Context) map[string]int {
	out := make(map[string]int, len(d.stats))
	for _, st := range d.stats {
		out[st.Name] = d.statValue(ctx, st)
	}
	return out
}

func (d *Detector) statValue(ctx context.Context, st config.StatSelector) int {
	el, err := d.page.Find(ctx, st.Selector)
	if err != nil {
		return 0
	}
	text, err := d.page.Text(ctx, el)
	if err != nil {
		return 0
	}
	match := digitsPattern.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
