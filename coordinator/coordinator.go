package coordinator

import (
	"log/slog"
	"sync"
	"time"

	"gofi/event"
	"gofi/sequence"
)

// The Coordinator is the single authority on which events have been received during a run.
//
// It is created when the run starts, is shared by handle with the servers that expose it, and is discarded when the run stops.
// All methods are safe for concurrent use.
type Coordinator struct {
	graph    *sequence.Graph
	unblocks []event.Event

	logger *slog.Logger
	now    func() time.Time

	mu           sync.RWMutex
	received     map[string]time.Time
	lastReceived time.Time
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// Use now as the source of timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Create a new Coordinator for the compiled sequence graph.
//
// Unblock events whose dependencies are already met are marked as received.
func New(graph *sequence.Graph, opts ...Option) *Coordinator {
	c := &Coordinator{
		graph:    graph,
		unblocks: graph.UnblockEvents(),
		logger:   slog.Default(),
		now:      time.Now,
		received: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReceived = c.now()
	c.cascade(c.lastReceived)
	return c
}

// The compiled sequence the coordinator enforces
func (c *Coordinator) Graph() *sequence.Graph {
	return c.graph
}

// Record that the event has happened.
//
// Returns true if the event had not been received before.
// Receiving an event more than once has no effect beyond the first time.
// A new event can satisfy the dependencies of Unblock events, which are then received as well.
func (c *Coordinator) Receive(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.received[name]; ok {
		duplicateReceives.Inc()
		return false
	}
	if !c.graph.Contains(name) {
		c.logger.Warn("received event that is not part of the run sequence", "event", name)
	}

	now := c.now()
	c.received[name] = now
	c.lastReceived = now
	eventsReceived.WithLabelValues("client").Inc()
	c.logger.Debug("received event", "event", name)

	c.cascade(now)
	return true
}

// Receive all Unblock events whose dependencies are met.
//
// The unblock events are visited in sequence order and dependencies always point to the left,
// so a single pass also receives unblocks that depend on unblocks received in the same pass.
// Must be called with the lock held.
func (c *Coordinator) cascade(now time.Time) {
	for _, evt := range c.unblocks {
		if _, ok := c.received[evt.Name]; ok {
			continue
		}
		if !c.dependenciesMet(evt.Name) {
			continue
		}
		c.received[evt.Name] = now
		c.lastReceived = now
		eventsReceived.WithLabelValues("cascade").Inc()
		c.logger.Debug("unblock event released", "event", evt.Name)
	}
}

// Must be called with the lock held.
func (c *Coordinator) dependenciesMet(name string) bool {
	for _, dep := range c.graph.DependsOn(name) {
		if _, ok := c.received[dep]; !ok {
			return false
		}
	}
	return true
}

// Returns true if all events name depends on have been received.
// If includeSelf is true name must also have been received.
func (c *Coordinator) DependenciesMet(name string, includeSelf bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	met := c.dependenciesMet(name)
	if met && includeSelf {
		_, met = c.received[name]
	}
	observeQuery("dependencies", met)
	return met
}

// Returns true if name has no blocking condition or if its blocking condition has been received.
func (c *Coordinator) BlockDependenciesMet(name string) bool {
	cond := c.graph.BlockingCondition(name)
	if cond == "" {
		observeQuery("blockDependencies", true)
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, met := c.received[cond]
	observeQuery("blockDependencies", met)
	return met
}

// Returns true if name has been received
func (c *Coordinator) Received(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.received[name]
	observeQuery("received", ok)
	return ok
}

// Returns true when every event of the sequence has been received
func (c *Coordinator) SequenceComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range c.graph.Names() {
		if _, ok := c.received[name]; !ok {
			return false
		}
	}
	return true
}

// The events of the sequence that have not been received, in sequence order
func (c *Coordinator) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pending := []string{}
	for _, name := range c.graph.Names() {
		if _, ok := c.received[name]; !ok {
			pending = append(pending, name)
		}
	}
	return pending
}

// The time the last event was received.
// Before any event is received it is the time the coordinator was created.
func (c *Coordinator) LastReceived() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReceived
}

// A copy of the received events and the time they were received
func (c *Coordinator) Snapshot() map[string]time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]time.Time, len(c.received))
	for name, at := range c.received {
		out[name] = at
	}
	return out
}
