package instrumentation

import (
	"context"
	"log/slog"

	"gofi/client"
	"gofi/event"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Hooks execute the client protocol calls of a node at the boundaries of its instrumented methods.
//
// Definitions are bound by Target. For gRPC nodes the target is the full method name, e.g. /pkg.Service/Method,
// and the interceptors created by UnaryServerInterceptor and UnaryClientInterceptor call Enter and Exit around every call.
// Other instrumentation engines call Enter and Exit directly.
//
// The target has already been matched when a hook runs. The callers of the target, the rest of the stack of a definition,
// are matched against the live stack by Enter, Exit and the client interceptor.
// The server interceptor runs on a goroutine started by the gRPC server, where the callers are never on the stack,
// so it only matches the target.
type Hooks struct {
	client *client.Client
	logger *slog.Logger

	before map[string][]event.Definition
	after  map[string][]event.Definition
}

type Option func(*Hooks)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hooks) { h.logger = logger }
}

// Create hooks running defs with c.
//
// If node is not empty only the definitions owned by node are bound.
func NewHooks(c *client.Client, node string, defs []event.Definition, opts ...Option) *Hooks {
	h := &Hooks{
		client: c,
		logger: slog.Default(),
		before: make(map[string][]event.Definition),
		after:  make(map[string][]event.Definition),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, def := range defs {
		if node != "" && def.Node != node {
			continue
		}
		switch def.Position {
		case event.Before:
			h.before[def.Target] = append(h.before[def.Target], def)
		case event.After:
			h.after[def.Target] = append(h.after[def.Target], def)
		}
	}
	return h
}

// Returns true if any definition is bound to target
func (h *Hooks) Instrumented(target string) bool {
	return len(h.before[target]) > 0 || len(h.after[target]) > 0
}

// Enter target.
//
// Starts a new pass and runs the definitions executed before target, in the order they were provided.
// The returned context carries the pass and must be passed to Exit.
func (h *Hooks) Enter(ctx context.Context, target string) (context.Context, error) {
	return h.enter(ctx, target, true)
}

// Exit target, running the definitions executed after it
func (h *Hooks) Exit(ctx context.Context, target string) error {
	return h.run(ctx, h.after[target], true)
}

func (h *Hooks) enter(ctx context.Context, target string, matchCallers bool) (context.Context, error) {
	ctx = client.EnterPass(ctx)
	return ctx, h.run(ctx, h.before[target], matchCallers)
}

func (h *Hooks) run(ctx context.Context, defs []event.Definition, matchCallers bool) error {
	for _, def := range defs {
		h.logger.Debug("running instrumented call", "definition", def.String())
		var callers []string
		if matchCallers && len(def.Stack) > 1 {
			callers = def.Stack[:len(def.Stack)-1]
		}
		var err error
		switch def.Call {
		case event.CallEnforceOrder:
			err = h.client.EnforceOrder(ctx, def.Event, callers...)
		case event.CallBlock:
			err = h.client.Block(ctx, def.Event, def.Unblock, callers...)
		case event.CallGarbageCollection:
			// Runs on its own goroutine. The instrumented method does not wait for the collection.
			h.client.GarbageCollection(ctx, def.Event, callers...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Create a UnaryServerInterceptor that runs the hooks of the called method around the handler.
func (h *Hooks) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !h.Instrumented(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := h.enter(ctx, info.FullMethod, false)
		if err != nil {
			return nil, status.FromContextError(err).Err()
		}
		resp, err := handler(ctx, req)
		if exitErr := h.run(ctx, h.after[info.FullMethod], false); exitErr != nil && err == nil {
			return nil, status.FromContextError(exitErr).Err()
		}
		return resp, err
	}
}

// Create a UnaryClientInterceptor that runs the hooks of the invoked method around the call.
func (h *Hooks) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if !h.Instrumented(method) {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		ctx, err := h.Enter(ctx, method)
		if err != nil {
			return err
		}
		err = invoker(ctx, method, req, reply, cc, opts...)
		if exitErr := h.Exit(ctx, method); exitErr != nil && err == nil {
			return exitErr
		}
		return err
	}
}
