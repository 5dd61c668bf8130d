package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradebot/internal/domain"
)

// fakeHandle records teardown calls against a fixed PID.
type fakeHandle struct {
	pid          int
	page         domain.Page
	terminateErr error
	terminated   bool
	killed       bool
}

func (h *fakeHandle) Page() domain.Page { return h.page }
func (h *fakeHandle) PID() int          { return h.pid }
func (h *fakeHandle) Terminate(context.Context) error {
	h.terminated = true
	return h.terminateErr
}
func (h *fakeHandle) Kill() error {
	h.killed = true
	return nil
}

func noSleep(context.Context, time.Duration) {}

func TestRecoverSucceedsAndResetsCounter(t *testing.T) {
	old := &fakeHandle{pid: 100}
	fresh := &fakeHandle{pid: 200, page: &probePage{}}
	proxy := NewPageProxy(nil)

	c := NewController(ControllerConfig{
		Connect: func(context.Context) (Handle, error) { return fresh, nil },
		Handle:  old,
		Proxy:   proxy,
		Pause:   noSleep,
	})

	state := domain.NewSessionState(100, time.Now()).MarkInvalid(time.Now())
	state.RecoveryAttempts = 1 // partway through a failure run

	next, err := c.Recover(context.Background(), state)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !old.terminated {
		t.Fatal("old browser was not torn down")
	}
	if !next.Valid || next.RecoveryAttempts != 0 {
		t.Fatalf("recovered state not healthy: %+v", next)
	}
	if next.PID != 200 {
		t.Fatalf("pid = %d, want 200", next.PID)
	}
	if _, err := proxy.Location(context.Background()); err != nil {
		t.Fatalf("proxy not re-homed: %v", err)
	}
	if c.Handle() != Handle(fresh) {
		t.Fatal("controller did not adopt the new handle")
	}
}

func TestRecoverEscalatesToKillWhenTerminateFails(t *testing.T) {
	old := &fakeHandle{pid: 100, terminateErr: errors.New("cdp gone")}
	fresh := &fakeHandle{pid: 200, page: &probePage{}}

	c := NewController(ControllerConfig{
		Connect: func(context.Context) (Handle, error) { return fresh, nil },
		Handle:  old,
		Pause:   noSleep,
	})

	if _, err := c.Recover(context.Background(), domain.NewSessionState(100, time.Now()).MarkInvalid(time.Now())); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !old.killed {
		t.Fatal("expected kill after failed graceful shutdown")
	}
}

func TestRecoverExhaustionIsFatal(t *testing.T) {
	attempts := 0
	c := NewController(ControllerConfig{
		Connect: func(context.Context) (Handle, error) {
			attempts++
			return nil, errors.New("chrome failed to start")
		},
		MaxAttempts: 3,
		Pause:       noSleep,
	})

	_, err := c.Recover(context.Background(), domain.NewSessionState(0, time.Now()).MarkInvalid(time.Now()))
	fe, ok := domain.AsFatal(err)
	if !ok {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if fe.Code != domain.ExitRecoveryExhausted {
		t.Fatalf("exit code = %d, want %d", fe.Code, domain.ExitRecoveryExhausted)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want exactly 3", attempts)
	}
}

func TestRecoverHonorsPriorAttemptsInRun(t *testing.T) {
	attempts := 0
	c := NewController(ControllerConfig{
		Connect: func(context.Context) (Handle, error) {
			attempts++
			return nil, errors.New("still down")
		},
		MaxAttempts: 3,
		Pause:       noSleep,
	})

	state := domain.NewSessionState(0, time.Now()).MarkInvalid(time.Now())
	state.RecoveryAttempts = 2 // two failures already in this run

	if _, err := c.Recover(context.Background(), state); err == nil {
		t.Fatal("expected fatal error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want only the one remaining", attempts)
	}
}

func TestPageProxySwap(t *testing.T) {
	proxy := NewPageProxy(nil)
	if _, err := proxy.Location(context.Background()); !domain.IsSessionError(err) {
		t.Fatalf("empty proxy must report a session error, got %v", err)
	}

	proxy.Swap(&probePage{})
	loc, err := proxy.Location(context.Background())
	if err != nil {
		t.Fatalf("Location after swap: %v", err)
	}
	if loc == "" {
		t.Fatal("expected delegated location")
	}
}
