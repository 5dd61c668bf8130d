package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifySessionError(t *testing.T) {
	cases := []struct {
		err     error
		session bool
	}{
		{errors.New("websocket: close 1006 (abnormal closure)"), true},
		{errors.New("Target closed"), true},
		{errors.New("context canceled"), true},
		{errors.New("element is obscured"), false},
		{ErrElementNotFound, false},
	}
	for _, tc := range cases {
		got := ClassifySessionError("probe", tc.err)
		if IsSessionError(got) != tc.session {
			t.Fatalf("ClassifySessionError(%v): session=%v, want %v", tc.err, IsSessionError(got), tc.session)
		}
	}
	if ClassifySessionError("probe", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestSessionErrorWrapping(t *testing.T) {
	inner := errors.New("target closed")
	wrapped := fmt.Errorf("scan inbox: %w", &SessionError{Op: "findAll", Err: inner})
	if !IsSessionError(wrapped) {
		t.Fatal("session error must survive wrapping")
	}
	if !errors.Is(wrapped, inner) {
		t.Fatal("inner error must stay reachable")
	}
}

func TestFatalError(t *testing.T) {
	err := Fatal(ExitRecoveryExhausted, "session recovery exhausted", errors.New("3 attempts failed"))
	wrapped := fmt.Errorf("loop stopped: %w", err)
	fe, ok := AsFatal(wrapped)
	if !ok {
		t.Fatal("fatal error must survive wrapping")
	}
	if fe.Code != ExitRecoveryExhausted {
		t.Fatalf("code = %d", fe.Code)
	}
	if _, ok := AsFatal(errors.New("plain")); ok {
		t.Fatal("plain errors are not fatal")
	}
}

func TestSessionStateTransitions(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionState(42, t0)
	if !s.Valid || s.PID != 42 || s.RecoveryAttempts != 0 {
		t.Fatalf("fresh state: %+v", s)
	}

	s = s.MarkInvalid(t0.Add(time.Minute))
	s.RecoveryAttempts = 2
	s = s.MarkHealthy(t0.Add(2 * time.Minute))
	if !s.Valid || s.RecoveryAttempts != 0 {
		t.Fatalf("MarkHealthy must reset the failure run: %+v", s)
	}

	if s.HealthCheckDue(t0.Add(3*time.Minute), 5*time.Minute) {
		t.Fatal("health check due too early")
	}
	if !s.HealthCheckDue(t0.Add(8*time.Minute), 5*time.Minute) {
		t.Fatal("health check should be due after the interval")
	}
}

func TestPayloadHelpers(t *testing.T) {
	if !(Payload{Kind: KindBusinessCard}).Empty() {
		t.Fatal("kind alone does not make a payload non-empty")
	}
	if (Payload{Text: "x"}).Empty() {
		t.Fatal("payload with text is not empty")
	}
	def := DefaultPayload()
	if def.Empty() || def.Kind != KindUnknown {
		t.Fatalf("unexpected default payload: %+v", def)
	}
}
