package client

import (
	"testing"
	"time"

	"gofi/coordinator"
	"gofi/event"
	"gofi/sequence"
)

const testPoll = 5 * time.Millisecond

func stackTrace(name string) event.Event {
	return event.NewStackTrace(name, "n1", event.Before, "p.Main.run", "p.Node."+name)
}

// A stack trace event at a point shared by all events created with it
func stackTraceAt(name string) event.Event {
	return event.NewStackTrace(name, "n1", event.Before, "p.Main.run", "p.Node.shared")
}

func newCoordinator(t *testing.T, expr string, events ...event.Event) *coordinator.Coordinator {
	t.Helper()
	g, err := sequence.Compile(expr, events)
	if err != nil {
		t.Fatalf("Unexpected error compiling %q: %v", expr, err)
	}
	return coordinator.New(g)
}

func newClient(coord *coordinator.Coordinator, opts ...Option) *Client {
	opts = append([]Option{WithPollInterval(testPoll)}, opts...)
	return New(InProcess(coord), opts...)
}

// Wait for a value on ch or fail the test
func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for %v", what)
	}
	var zero T
	return zero
}

// Fail the test if ch receives within d
func expectBlocked[T any](t *testing.T, ch <-chan T, d time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("Expected %v to block", what)
	case <-time.After(d):
	}
}
