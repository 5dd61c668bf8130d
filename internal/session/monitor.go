package session

import (
	"context"
	"log/slog"
	"time"

	"tradebot/internal/domain"
)

// Monitor answers one question: is the browser session still usable? It runs
// two cheap read-only probes against the live page. Any probe failure means
// unhealthy; the monitor never tries to repair anything itself.
type Monitor struct {
	page   domain.Page
	logger *slog.Logger
}

func NewMonitor(page domain.Page, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{page: page, logger: logger}
}

// Check probes the session and reports whether it is healthy. Probe errors
// are logged but never returned; an error of any kind counts as unhealthy.
func (m *Monitor) Check(ctx context.Context) bool {
	start := time.Now()

	if _, err := m.page.Location(ctx); err != nil {
		m.logProbe("location", err)
		return false
	}
	if _, err := m.page.Title(ctx); err != nil {
		m.logProbe("title", err)
		return false
	}

	m.logger.Debug("session health check passed", "took", time.Since(start))
	return true
}

func (m *Monitor) logProbe(probe string, err error) {
	if domain.IsSessionError(err) {
		m.logger.Warn("session probe failed", "probe", probe, "err", err)
		return
	}
	// Unexpected errors still mean the session is not trustworthy.
	m.logger.Warn("session probe failed unexpectedly", "probe", probe, "err", err)
}
