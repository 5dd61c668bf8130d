package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradebot/internal/domain"
)

// Handle is the slice of the browser the controller needs to tear down and
// replace a session.
type Handle interface {
	Page() domain.Page
	PID() int
	Terminate(ctx context.Context) error
	Kill() error
}

// ConnectFunc launches a fresh browser and brings it to an authenticated,
// ready-to-poll state. The controller owns retrying it across recovery
// attempts.
type ConnectFunc func(ctx context.Context) (Handle, error)

// Controller replaces a dead browser session with a fresh one. It only ever
// kills the process it launched itself; the PID is tracked through the
// handle, never discovered by name.
type Controller struct {
	connect     ConnectFunc
	handle      Handle
	proxy       *PageProxy
	maxAttempts int
	settle      time.Duration
	pause       PauseFunc
	logger      *slog.Logger
}

// PauseFunc sleeps for the given duration unless the context ends first.
type PauseFunc func(ctx context.Context, d time.Duration)

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type ControllerConfig struct {
	Connect     ConnectFunc
	Handle      Handle
	Proxy       *PageProxy
	MaxAttempts int
	Settle      time.Duration
	Pause       PauseFunc
	Logger      *slog.Logger
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}
	if cfg.Pause == nil {
		cfg.Pause = sleepCtx
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		connect:     cfg.Connect,
		handle:      cfg.Handle,
		proxy:       cfg.Proxy,
		maxAttempts: cfg.MaxAttempts,
		settle:      cfg.Settle,
		pause:       cfg.Pause,
		logger:      cfg.Logger,
	}
}

// Handle returns the current browser handle.
func (c *Controller) Handle() Handle { return c.handle }

// Recover tears the dead session down and launches a replacement, retrying
// until the attempt budget for this failure run is spent. On success the
// page proxy is swapped to the new browser and the returned state is healthy
// with its attempt counter reset. Exhausting the budget is fatal.
func (c *Controller) Recover(ctx context.Context, state domain.SessionState) (domain.SessionState, error) {
	for state.RecoveryAttempts < c.maxAttempts {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		state.RecoveryAttempts++
		c.logger.Info("recovering session",
			"attempt", state.RecoveryAttempts,
			"max_attempts", c.maxAttempts)

		c.teardown(ctx)
		c.pause(ctx, c.settle)

		handle, err := c.connect(ctx)
		if err != nil {
			c.logger.Error("recovery attempt failed",
				"attempt", state.RecoveryAttempts, "err", err)
			continue
		}

		c.handle = handle
		if c.proxy != nil {
			c.proxy.Swap(handle.Page())
		}
		state.PID = handle.PID()
		state = state.MarkHealthy(time.Now())
		c.logger.Info("session recovered", "pid", state.PID)
		return state, nil
	}

	return state, domain.Fatal(domain.ExitRecoveryExhausted,
		"session recovery exhausted",
		fmt.Errorf("%d attempts failed", c.maxAttempts))
}

// teardown closes the old browser, escalating to a kill of the owned process
// if graceful shutdown fails. Errors are logged and swallowed; the session is
// already dead.
func (c *Controller) teardown(ctx context.Context) {
	if c.handle == nil {
		return
	}
	pid := c.handle.PID()
	if err := c.handle.Terminate(ctx); err != nil {
		c.logger.Warn("graceful browser shutdown failed", "pid", pid, "err", err)
		if err := c.handle.Kill(); err != nil {
			c.logger.Warn("browser kill failed", "pid", pid, "err", err)
		}
	}
	c.handle = nil
}
