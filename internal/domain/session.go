package domain

import "time"

// SessionState tracks the liveness of the single owned browser session. It
// is threaded as a value through the control loop and recovery controller;
// recovery replaces the whole state, a session is never half-alive.
type SessionState struct {
	PID              int // OS process id of the Chrome we launched; 0 = none
	Valid            bool
	RecoveryAttempts int
	LastHealthCheck  time.Time
	StartedAt        time.Time
}

// NewSessionState returns the state for a freshly launched browser.
func NewSessionState(pid int, now time.Time) SessionState {
	return SessionState{
		PID:             pid,
		Valid:           true,
		LastHealthCheck: now,
		StartedAt:       now,
	}
}

// MarkHealthy records a successful handled-conversation cycle or recovery.
// The recovery budget is about consecutive failures, so the counter resets.
func (s SessionState) MarkHealthy(now time.Time) SessionState {
	s.Valid = true
	s.RecoveryAttempts = 0
	s.LastHealthCheck = now
	return s
}

// MarkInvalid flags the session for recovery.
func (s SessionState) MarkInvalid(now time.Time) SessionState {
	s.Valid = false
	s.LastHealthCheck = now
	return s
}

// HealthCheckDue reports whether the periodic check interval has elapsed.
func (s SessionState) HealthCheckDue(now time.Time, interval time.Duration) bool {
	return now.Sub(s.LastHealthCheck) >= interval
}
