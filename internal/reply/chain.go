package reply

import (
	"context"
	"log/slog"
	"strings"

	"tradebot/internal/domain"
)

// Source produces a reply for a query. Sources are tried in order; any
// error or empty result falls through to the next one.
type Source interface {
	Name() string
	Provenance() domain.Provenance
	Generate(ctx context.Context, q domain.Query) (string, error)
}

// Chain tries sources in order and returns the first non-empty candidate.
// The canned source terminates the chain, so Reply never returns an empty
// string: canned templates are the availability floor.
type Chain struct {
	sources []Source
	canned  *Canned
	logger  *slog.Logger
}

// NewChain assembles the fallback chain. Nil sources are skipped; canned is
// mandatory and always runs last.
func NewChain(canned *Canned, logger *slog.Logger, sources ...Source) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{sources: kept, canned: canned, logger: logger}
}

// Reply runs the chain for one conversation turn.
func (c *Chain) Reply(ctx context.Context, q domain.Query) domain.ReplyCandidate {
	for _, src := range c.sources {
		text, err := src.Generate(ctx, q)
		if err != nil {
			c.logger.Warn("reply source failed, trying next", "source", src.Name(), "err", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			c.logger.Debug("reply source returned empty, trying next", "source", src.Name())
			continue
		}
		c.logger.Info("reply generated", "source", src.Name(), "len", len(text))
		return domain.ReplyCandidate{Text: text, Source: src.Provenance()}
	}
	return c.Fallback(ctx)
}

// Fallback returns a canned acknowledgement directly, bypassing the
// generative sources. Used for conversation kinds that must never receive
// generated content.
func (c *Chain) Fallback(ctx context.Context) domain.ReplyCandidate {
	text, _ := c.canned.Generate(ctx, domain.Query{})
	return domain.ReplyCandidate{Text: text, Source: domain.ProvenanceCanned}
}
