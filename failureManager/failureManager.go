package failureManager

import (
	"context"
	"time"
)

// A Node is a process deployed by the runtime engine
type Node struct {
	Name string
	// Environment passed to the node process, e.g. the address of the coordinator
	Env map[string]string
}

// The FailureManager is the runtime engine that deploys nodes and applies faults to them.
//
// How the actions are performed, e.g. with containers, iptables or libfaketime, is up to the implementation.
// All actions return when the action has been applied.
type FailureManager interface {
	StartNode(ctx context.Context, node Node) error
	// Stop the node gracefully
	StopNode(ctx context.Context, name string) error
	// Stop the node immediately, without giving it a chance to clean up
	KillNode(ctx context.Context, name string) error
	RestartNode(ctx context.Context, node Node) error
	// Only allow nodes in the same partition to communicate
	NetworkPartition(ctx context.Context, partitions [][]string) error
	RemoveNetworkPartition(ctx context.Context) error
	// Offset the clock of the node
	ClockDrift(ctx context.Context, name string, offset time.Duration) error
	RunCommandInNode(ctx context.Context, name string, command []string) error
}

/*
	The failure manager should:
		- Perform the actions of the runtime engine on the nodes
		- Keep track of which nodes are running so that impossible actions are rejected before they reach the engine
		- Let other components learn about node status changes
*/
