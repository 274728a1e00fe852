package failureManager

import (
	"context"
	"time"
)

// A FailureManager built from functions.
//
// Actions whose function is nil do nothing and succeed.
type Funcs struct {
	Start           func(ctx context.Context, node Node) error
	Stop            func(ctx context.Context, name string) error
	Kill            func(ctx context.Context, name string) error
	Restart         func(ctx context.Context, node Node) error
	Partition       func(ctx context.Context, partitions [][]string) error
	RemovePartition func(ctx context.Context) error
	Drift           func(ctx context.Context, name string, offset time.Duration) error
	Command         func(ctx context.Context, name string, command []string) error
}

func (f Funcs) StartNode(ctx context.Context, node Node) error {
	if f.Start == nil {
		return nil
	}
	return f.Start(ctx, node)
}

func (f Funcs) StopNode(ctx context.Context, name string) error {
	if f.Stop == nil {
		return nil
	}
	return f.Stop(ctx, name)
}

func (f Funcs) KillNode(ctx context.Context, name string) error {
	if f.Kill == nil {
		return nil
	}
	return f.Kill(ctx, name)
}

func (f Funcs) RestartNode(ctx context.Context, node Node) error {
	if f.Restart == nil {
		return nil
	}
	return f.Restart(ctx, node)
}

func (f Funcs) NetworkPartition(ctx context.Context, partitions [][]string) error {
	if f.Partition == nil {
		return nil
	}
	return f.Partition(ctx, partitions)
}

func (f Funcs) RemoveNetworkPartition(ctx context.Context) error {
	if f.RemovePartition == nil {
		return nil
	}
	return f.RemovePartition(ctx)
}

func (f Funcs) ClockDrift(ctx context.Context, name string, offset time.Duration) error {
	if f.Drift == nil {
		return nil
	}
	return f.Drift(ctx, name, offset)
}

func (f Funcs) RunCommandInNode(ctx context.Context, name string, command []string) error {
	if f.Command == nil {
		return nil
	}
	return f.Command(ctx, name, command)
}
