package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout            = errors.New("client: timed out waiting for dependencies")
	ErrUnexpectedResponse = errors.New("client: unexpected response from coordinator")
)

// Returned by BlockAndPoll when the dependencies of an event are not met before the timeout
type TimeoutError struct {
	Event   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("client: dependencies of %q not met within %v", e.Event, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
