package client

import (
	"context"
	"sync/atomic"
)

// A Pass is one execution pass through instrumented methods.
//
// A pass may be paused at most once. Instrumentation hooks call EnterPass when an instrumented method is entered,
// which allows the pass to be paused again, and the first pause consumes it.
// A recursive pass through the same method therefore only pauses once while unwinding.
type Pass struct {
	consumed atomic.Bool
}

type passKey struct{}

// Enter an instrumented method.
//
// If ctx already carries a pass it is reset and ctx is returned unchanged, otherwise a new pass is attached.
func EnterPass(ctx context.Context) context.Context {
	if p := PassFromContext(ctx); p != nil {
		p.consumed.Store(false)
		return ctx
	}
	return context.WithValue(ctx, passKey{}, new(Pass))
}

// Returns the pass carried by ctx, or nil
func PassFromContext(ctx context.Context) *Pass {
	p, _ := ctx.Value(passKey{}).(*Pass)
	return p
}

// A nil pass is always allowed to pause
func (p *Pass) allowed() bool {
	return p == nil || !p.consumed.Load()
}

func (p *Pass) consume() {
	if p != nil {
		p.consumed.Store(true)
	}
}

// Returns true if the pass can still be paused
func (p *Pass) Allowed() bool {
	return p.allowed()
}
