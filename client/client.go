package client

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

const DefaultPollInterval = 100 * time.Millisecond

// The Client is the part of the ordering protocol that runs inside a monitored node.
//
// Instrumented code calls it at instrumented points.
// It pauses the calling goroutine by polling the coordinator until the event is allowed to happen, and then reports the event to the coordinator.
// Failures to reach the coordinator are treated as unmet dependencies and retried, so a node never fails because the coordinator is briefly unreachable.
type Client struct {
	transport Transport
	logger    *slog.Logger

	pollInterval time.Duration
	matchStack   func(signature []string) bool
	forceGC      func()

	mu   sync.Mutex
	sent map[string]bool
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Configure how often the coordinator is polled while waiting.
//
// Default value is 100ms
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// Configure how stack signatures are matched against the live call stack.
//
// Default value is MatchStack
func WithStackMatcher(match func(signature []string) bool) Option {
	return func(c *Client) { c.matchStack = match }
}

// Configure the function used to force a garbage collection.
//
// Default value is runtime.GC
func WithGC(gc func()) Option {
	return func(c *Client) { c.forceGC = gc }
}

func New(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:    transport,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		matchStack:   MatchStack,
		forceGC:      runtime.GC,
		sent:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enforce the order of a StackTrace event.
//
// Does nothing if the event has already been sent, if stack is provided and does not match the live call stack,
// if the pass carried by ctx has already been paused, or if the blocking condition of the event is not met.
// Otherwise it blocks until the dependencies of the event are met, sends the event to the coordinator and consumes the pass.
//
// Only returns an error if ctx is done.
func (c *Client) EnforceOrder(ctx context.Context, name string, stack ...string) error {
	if c.alreadySent(ctx, name) {
		return nil
	}
	if len(stack) > 0 && !c.matchStack(stack) {
		return nil
	}
	pass := PassFromContext(ctx)
	if !pass.allowed() {
		return nil
	}
	if !c.blockDependenciesMet(ctx, name) {
		return nil
	}

	if err := c.BlockAndPoll(ctx, name, false, 0); err != nil {
		return err
	}
	if err := c.send(ctx, name); err != nil {
		return err
	}
	pass.consume()
	return nil
}

// Pause execution with a Scheduling Block event until unblock is received.
//
// The block is gated by the blocking condition of unblock, so only one pause is active at a time at the same point.
// Otherwise it follows EnforceOrder for block and then waits until unblock has been received.
func (c *Client) Block(ctx context.Context, block, unblock string, stack ...string) error {
	if c.alreadySent(ctx, block) {
		return nil
	}
	if len(stack) > 0 && !c.matchStack(stack) {
		return nil
	}
	pass := PassFromContext(ctx)
	if !pass.allowed() {
		return nil
	}
	if !c.blockDependenciesMet(ctx, unblock) {
		return nil
	}

	if err := c.BlockAndPoll(ctx, block, false, 0); err != nil {
		return err
	}
	if err := c.send(ctx, block); err != nil {
		return err
	}
	pass.consume()
	c.logger.Debug("paused until unblocked", "event", block, "unblock", unblock)
	return c.BlockAndPoll(ctx, unblock, true, 0)
}

// Block until the dependencies of name are met.
//
// If includeSelf is true name must also have been received.
// If timeout is larger than zero a *TimeoutError is returned when it elapses.
// Returns the context error if ctx is done.
func (c *Client) BlockAndPoll(ctx context.Context, name string, includeSelf bool, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		met, err := c.transport.DependenciesMet(ctx, name, includeSelf)
		if err != nil {
			c.logger.Debug("dependency check failed", "event", name, "error", err)
		} else if met {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return &TimeoutError{Event: name, Timeout: timeout}
		case <-ticker.C:
		}
	}
}

// Force a garbage collection when the GarbageCollection event is allowed to happen.
//
// The work is done on a separate goroutine so that the instrumented goroutine is never the one blocking.
// The goroutine outlives the call that triggered it: cancellation of ctx is ignored, only its values are kept.
// If stack is provided it is matched on the calling goroutine, and nothing is done if it does not match.
// The returned channel receives the result and is then closed. Callers that do not care can ignore it.
func (c *Client) GarbageCollection(ctx context.Context, name string, stack ...string) <-chan error {
	done := make(chan error, 1)
	if len(stack) > 0 && !c.matchStack(stack) {
		close(done)
		return done
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		done <- c.garbageCollection(ctx, name)
	}()
	return done
}

func (c *Client) garbageCollection(ctx context.Context, name string) error {
	if c.alreadySent(ctx, name) {
		return nil
	}
	if !c.blockDependenciesMet(ctx, name) {
		return nil
	}
	if err := c.BlockAndPoll(ctx, name, false, 0); err != nil {
		return err
	}
	c.forceGC()
	return c.send(ctx, name)
}

// Returns true if the event has been sent by this client, or received by the coordinator from an earlier incarnation of the node.
func (c *Client) alreadySent(ctx context.Context, name string) bool {
	c.mu.Lock()
	sent := c.sent[name]
	c.mu.Unlock()
	if sent {
		return true
	}

	received, err := c.transport.Received(ctx, name)
	if err != nil || !received {
		return false
	}
	c.markSent(name)
	return true
}

func (c *Client) blockDependenciesMet(ctx context.Context, name string) bool {
	met, err := c.transport.BlockDependenciesMet(ctx, name)
	if err != nil {
		c.logger.Debug("block dependency check failed", "event", name, "error", err)
		return false
	}
	return met
}

// Send the event to the coordinator, retrying until it succeeds or ctx is done
func (c *Client) send(ctx context.Context, name string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		err := c.transport.Receive(ctx, name)
		if err == nil {
			c.markSent(name)
			c.logger.Debug("sent event", "event", name)
			return nil
		}
		c.logger.Warn("failed to send event, retrying", "event", name, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) markSent(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[name] = true
}

// Returns true if the event has been sent by this client
func (c *Client) Sent(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[name]
}
