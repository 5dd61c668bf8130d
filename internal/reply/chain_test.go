package reply

import (
	"context"
	"errors"
	"testing"

	"tradebot/internal/domain"
)

// stubSource is a scripted reply source.
type stubSource struct {
	name string
	text string
	err  error
	prov domain.Provenance

	calls int
}

func (s *stubSource) Name() string                  { return s.name }
func (s *stubSource) Provenance() domain.Provenance { return s.prov }
func (s *stubSource) Generate(context.Context, domain.Query) (string, error) {
	s.calls++
	return s.text, s.err
}

func inTemplates(c *Canned, text string) bool {
	for _, t := range c.Templates() {
		if t == text {
			return true
		}
	}
	return false
}

func TestChainFirstSourceWins(t *testing.T) {
	canned := NewCanned("", nil)
	first := &stubSource{name: "first", text: "Yes, we ship worldwide.", prov: domain.ProvenanceAPI}
	second := &stubSource{name: "second", text: "unused", prov: domain.ProvenanceAssistant}

	got := NewChain(canned, nil, first, second).Reply(context.Background(), domain.Query{Text: "shipping?"})
	if got.Text != "Yes, we ship worldwide." {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Source != domain.ProvenanceAPI {
		t.Fatalf("source = %v, want api", got.Source)
	}
	if second.calls != 0 {
		t.Fatal("later sources must not run after a hit")
	}
}

func TestChainFallsThroughErrorsAndBlanks(t *testing.T) {
	canned := NewCanned("", nil)
	failing := &stubSource{name: "failing", err: errors.New("boom"), prov: domain.ProvenanceAPI}
	blank := &stubSource{name: "blank", text: "   ", prov: domain.ProvenanceAssistant}

	got := NewChain(canned, nil, failing, blank).Reply(context.Background(), domain.Query{Text: "hi"})
	if got.Source != domain.ProvenanceCanned {
		t.Fatalf("source = %v, want canned", got.Source)
	}
	if !inTemplates(canned, got.Text) {
		t.Fatalf("fallback text %q is not a canned template", got.Text)
	}
}

func TestChainNeverReturnsEmpty(t *testing.T) {
	canned := NewCanned("", nil)
	chain := NewChain(canned, nil, &stubSource{name: "dead", err: errors.New("down")})

	for i := 0; i < 20; i++ {
		got := chain.Reply(context.Background(), domain.Query{})
		if got.Text == "" {
			t.Fatal("chain returned an empty reply")
		}
	}
}

func TestChainSkipsNilSources(t *testing.T) {
	canned := NewCanned("", nil)
	chain := NewChain(canned, nil, nil, &stubSource{name: "only", text: "ok", prov: domain.ProvenanceAPI})
	got := chain.Reply(context.Background(), domain.Query{})
	if got.Text != "ok" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestFallbackBypassesSources(t *testing.T) {
	canned := NewCanned("", nil)
	src := &stubSource{name: "src", text: "generated", prov: domain.ProvenanceAPI}

	got := NewChain(canned, nil, src).Fallback(context.Background())
	if src.calls != 0 {
		t.Fatal("fallback must not consult generative sources")
	}
	if got.Source != domain.ProvenanceCanned || !inTemplates(canned, got.Text) {
		t.Fatalf("unexpected fallback candidate: %+v", got)
	}
}

func TestCannedPickIsWithinTemplates(t *testing.T) {
	c := NewCanned("", nil)
	if len(c.Templates()) < 6 {
		t.Fatalf("built-in template list too small: %d", len(c.Templates()))
	}
	c.pick = func(n int) int { return n - 1 }
	text, err := c.Generate(context.Background(), domain.Query{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != c.Templates()[len(c.Templates())-1] {
		t.Fatalf("pick override ignored, got %q", text)
	}
}
