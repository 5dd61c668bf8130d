package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrElementNotFound is returned by Page lookups when a selector matches
// nothing on the current render. It marks an expected UI race, not a fault.
var ErrElementNotFound = errors.New("element not found")

// SessionError wraps a driver failure that means the automation session is
// gone. It escalates straight to the recovery controller, bypassing the
// consecutive-error path.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session unusable during %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsSessionError reports whether err indicates an unusable session.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// sessionErrorMarkers are substrings of driver errors that mean the browser
// or its CDP connection is gone rather than a single lookup having failed.
var sessionErrorMarkers = []string{
	"session not found",
	"target closed",
	"context canceled",
	"websocket: close",
	"connection refused",
	"chrome failed to start",
	"broken pipe",
}

// ClassifySessionError wraps err in a SessionError when it matches a known
// driver-unusable pattern, and returns it unchanged otherwise.
func ClassifySessionError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionErrorMarkers {
		if strings.Contains(msg, marker) {
			return &SessionError{Op: op, Err: err}
		}
	}
	return err
}

// FatalError terminates the process. Only the control loop and main are
// allowed to handle it; everything below either degrades or escalates.
type FatalError struct {
	Reason string
	Code   int // process exit code, always non-zero
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return "fatal: " + e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal builds a FatalError with the given exit code.
func Fatal(code int, reason string, err error) *FatalError {
	return &FatalError{Reason: reason, Code: code, Err: err}
}

// AsFatal extracts a FatalError from err, if any.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Process exit codes for the fatal paths.
const (
	ExitLaunchFailed      = 2
	ExitLoginFailed       = 3
	ExitRecoveryExhausted = 4
)

// Outcome is the result of one conversation-handling attempt. UI races map
// to Skip or Retry and never disturb the global failure counters.
type Outcome int

const (
	OutcomeHandled Outcome = iota
	OutcomeSkip            // nothing eligible, or the target vanished
	OutcomeRetry           // transient failure, count toward the error budget
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeSkip:
		return "skip"
	case OutcomeRetry:
		return "retry"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
