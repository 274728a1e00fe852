package coordinator

import (
	"testing"

	"gofi/event"
	"gofi/sequence"
)

func stackTrace(name string) event.Event {
	return event.NewStackTrace(name, "n1", event.Before, "p.Main.run", "p.Node."+name)
}

func compile(t *testing.T, expr string, events ...event.Event) *sequence.Graph {
	t.Helper()
	g, err := sequence.Compile(expr, events)
	if err != nil {
		t.Fatalf("Unexpected error compiling %q: %v", expr, err)
	}
	return g
}

// n1Started*e1*e2
func endToEndGraph(t *testing.T) *sequence.Graph {
	return compile(t, "n1Started*e1*e2",
		event.NewNodeOperation("n1Started", "n1", event.Start),
		stackTrace("e1"),
		stackTrace("e2"),
	)
}

// start*b*x*u, where u is released when x is received
func unblockGraph(t *testing.T) *sequence.Graph {
	return compile(t, "start*b*x*u",
		event.NewNodeOperation("start", "n1", event.Start),
		event.NewScheduling("b", "n1", event.Block, event.Before, "p.A.m"),
		stackTrace("x"),
		event.NewScheduling("u", "n1", event.Unblock, event.Before, "p.A.m"),
	)
}

// A stack trace event at a point shared by all events created with it
func stackTraceAt(name string) event.Event {
	return event.NewStackTrace(name, "n1", event.Before, "p.Main.run", "p.Node.shared")
}
