package sequence

import (
	"gofi/event"

	"golang.org/x/exp/slices"
)

// A Graph is a compiled run sequence.
//
// It holds the events referenced by the sequence, in the order they appear, with their dependencies, blocking conditions and block/unblock pairing resolved.
// A Graph is never modified after it has been compiled and is safe for concurrent use.
// Every accessor returns copies, so callers may modify what they get.
type Graph struct {
	expr   string
	order  []string
	events map[string]event.Event
}

// The expression the graph was compiled from
func (g *Graph) Expr() string {
	return g.expr
}

// The identifiers of the sequence in the order they appear
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Returns true if name is referenced by the sequence
func (g *Graph) Contains(name string) bool {
	_, ok := g.events[name]
	return ok
}

// Returns the compiled event with the provided name
func (g *Graph) Event(name string) (event.Event, bool) {
	evt, ok := g.events[name]
	return evt.Clone(), ok
}

// The compiled events in the order they appear in the sequence
func (g *Graph) Events() []event.Event {
	return g.filter(func(event.Event) bool { return true })
}

// The events the runner executes on the environment, in the order they appear in the sequence
func (g *Graph) External() []event.Event {
	return g.filter(event.Event.IsExternal)
}

// The events executed inside nodes, in the order they appear in the sequence
func (g *Graph) Internal() []event.Event {
	return g.filter(event.Event.IsInternal)
}

// The Scheduling Unblock events in the order they appear in the sequence
func (g *Graph) UnblockEvents() []event.Event {
	return g.filter(event.Event.IsUnblock)
}

// The events that must be received before name can happen.
//
// Returns nil if name has no dependencies or is not part of the sequence.
func (g *Graph) DependsOn(name string) []string {
	return slices.Clone(g.events[name].DependsOn)
}

// The event that must be received before name may pause execution. Empty if there is none.
func (g *Graph) BlockingCondition(name string) string {
	return g.events[name].BlockingCondition
}

// The dependency graph, with exactly one entry for each identifier of the sequence
func (g *Graph) Dependencies() map[string][]string {
	deps := make(map[string][]string, len(g.order))
	for _, name := range g.order {
		deps[name] = slices.Clone(g.events[name].DependsOn)
	}
	return deps
}

// The instrumentation definitions of the internal events owned by node.
//
// If node is empty the definitions of all nodes are returned.
func (g *Graph) Definitions(node string) []event.Definition {
	defs := []event.Definition{}
	for _, evt := range g.Internal() {
		if node != "" && evt.Node != node {
			continue
		}
		if def, ok := event.Instrument(evt); ok {
			defs = append(defs, def)
		}
	}
	return defs
}

func (g *Graph) filter(keep func(event.Event) bool) []event.Event {
	out := []event.Event{}
	for _, name := range g.order {
		if evt := g.events[name]; keep(evt) {
			out = append(out, evt.Clone())
		}
	}
	return out
}
