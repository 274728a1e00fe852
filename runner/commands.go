package runner

import (
	"context"

	"gofi/event"
)

// Commands are executed one at a time by the command loop of the runner

type command interface {
	context() context.Context
}

type stopNodeCmd struct {
	ctx  context.Context
	Node string
}

type killNodeCmd struct {
	ctx  context.Context
	Node string
}

type restartNodeCmd struct {
	ctx  context.Context
	Node string
}

// Execute the runtime action of an external event
type externalCmd struct {
	ctx context.Context
	Evt event.Event
}

type stopCmd struct {
	ctx context.Context
}

func (c stopNodeCmd) context() context.Context    { return c.ctx }
func (c killNodeCmd) context() context.Context    { return c.ctx }
func (c restartNodeCmd) context() context.Context { return c.ctx }
func (c externalCmd) context() context.Context    { return c.ctx }
func (c stopCmd) context() context.Context        { return c.ctx }
