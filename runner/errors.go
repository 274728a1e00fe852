package runner

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotStarted     = errors.New("runner: run has not been started")
	ErrAlreadyStarted = errors.New("runner: run has already been started")
	ErrStopped        = errors.New("runner: run has been stopped")
	ErrUnknownNode    = errors.New("runner: unknown node")

	ErrWallClockTimeout  = errors.New("runner: run did not complete in time")
	ErrInactivityTimeout = errors.New("runner: no event received in time")
)

// Returned by Wait when the sequence is not complete before a timeout.
//
// Matches ErrWallClockTimeout or ErrInactivityTimeout with errors.Is.
type TimeoutError struct {
	Err     error
	Timeout time.Duration
	// The events that had not been received
	Pending []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %v, pending events: %v", e.Err, e.Timeout, e.Pending)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
