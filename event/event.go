package event

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// An Event is something that happens during a run and that can be ordered by the run sequence.
//
// Events are a closed set of kinds distinguished by Kind.
// Only the fields that belong to the kind are used, the rest are left at their zero value.
// Internal events (StackTrace, Scheduling and GarbageCollection) happen inside a node at an instrumented point.
// External events (NodeOperation, NetworkOperation, ClockDrift and Workload) are actions performed on the environment by the runner.
type Event struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`

	// The node that owns the event.
	// Required for internal events and for external events acting on a single node.
	Node string `yaml:"node,omitempty"`

	// Qualified method names, outermost first and the target method last.
	Stack    []string `yaml:"stack,omitempty"`
	Position Position `yaml:"position,omitempty"`

	Scheduling SchedulingOp `yaml:"scheduling,omitempty"`
	NodeOp     NodeOp       `yaml:"nodeOp,omitempty"`
	NetworkOp  NetworkOp    `yaml:"networkOp,omitempty"`

	// Groups of nodes that can only talk within their group while the partition is active.
	Partitions [][]string `yaml:"partitions,omitempty"`
	// Offset applied to the clock of Node by a ClockDrift event.
	Offset time.Duration `yaml:"offset,omitempty"`
	// Command run inside Node by a Workload event.
	Command []string `yaml:"command,omitempty"`

	// Set by the sequence compiler.
	// All events in DependsOn must be received before this event can happen.
	DependsOn []string `yaml:"dependsOn,omitempty"`
	// Set by the sequence compiler.
	// The event that must be received before this event may pause execution. Empty if there is none.
	BlockingCondition string `yaml:"blockingCondition,omitempty"`
	// Set by the sequence compiler on Block events.
	// The Unblock event that releases execution paused by this event.
	Unblock string `yaml:"unblock,omitempty"`
}

// Create a StackTrace event.
//
// The event happens when node executes the last method of stack, called through the rest of stack.
func NewStackTrace(name, node string, pos Position, stack ...string) Event {
	return Event{
		Name:     name,
		Kind:     StackTrace,
		Node:     node,
		Stack:    stack,
		Position: pos,
	}
}

// Create a Scheduling event blocking or unblocking execution at the provided point
func NewScheduling(name, node string, op SchedulingOp, pos Position, stack ...string) Event {
	return Event{
		Name:       name,
		Kind:       Scheduling,
		Node:       node,
		Stack:      stack,
		Position:   pos,
		Scheduling: op,
	}
}

// Create an event that forces a garbage collection on node at the provided point
func NewGarbageCollection(name, node string, pos Position, stack ...string) Event {
	return Event{
		Name:     name,
		Kind:     GarbageCollection,
		Node:     node,
		Stack:    stack,
		Position: pos,
	}
}

func NewNodeOperation(name, node string, op NodeOp) Event {
	return Event{
		Name:   name,
		Kind:   NodeOperation,
		Node:   node,
		NodeOp: op,
	}
}

// Create an event that partitions the network into the provided groups of nodes.
func NewNetworkPartition(name string, partitions ...[]string) Event {
	return Event{
		Name:       name,
		Kind:       NetworkOperation,
		NetworkOp:  Partition,
		Partitions: partitions,
	}
}

// Create an event that removes all network partitions
func NewRemoveNetworkPartition(name string) Event {
	return Event{
		Name:      name,
		Kind:      NetworkOperation,
		NetworkOp: RemovePartition,
	}
}

func NewClockDrift(name, node string, offset time.Duration) Event {
	return Event{
		Name:   name,
		Kind:   ClockDrift,
		Node:   node,
		Offset: offset,
	}
}

func NewWorkload(name, node string, command ...string) Event {
	return Event{
		Name:    name,
		Kind:    Workload,
		Node:    node,
		Command: command,
	}
}

// Returns true if the event happens inside a node at an instrumented point
func (e Event) IsInternal() bool {
	return e.Kind.IsInternal()
}

// Returns true if the event is performed by the runner on the environment
func (e Event) IsExternal() bool {
	return !e.Kind.IsInternal()
}

// Returns true if the event pauses execution at an instrumented point.
//
// Blocking events at the same point are chained by their blocking condition so that only one of them pauses execution at a time.
func (e Event) IsBlocking() bool {
	return e.Kind == StackTrace || (e.Kind == Scheduling && e.Scheduling == Unblock)
}

// Returns true if the event is a Scheduling Block
func (e Event) IsBlock() bool {
	return e.Kind == Scheduling && e.Scheduling == Block
}

// Returns true if the event is a Scheduling Unblock
func (e Event) IsUnblock() bool {
	return e.Kind == Scheduling && e.Scheduling == Unblock
}

// The program point of an internal event.
//
// Two events with the same point are executed at the exact same code location.
func (e Event) Point() Point {
	return Point{
		Position:  e.Position,
		Signature: strings.Join(e.Stack, ";"),
	}
}

// Validate that the fields required by the kind of the event are set
func (e Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEvent)
	}
	switch e.Kind {
	case StackTrace, Scheduling, GarbageCollection:
		if e.Node == "" {
			return fmt.Errorf("%w: %v event %q has no node", ErrInvalidEvent, e.Kind, e.Name)
		}
		if len(e.Stack) == 0 {
			return fmt.Errorf("%w: %v event %q has no stack", ErrInvalidEvent, e.Kind, e.Name)
		}
	case NodeOperation, ClockDrift, Workload:
		if e.Node == "" {
			return fmt.Errorf("%w: %v event %q has no node", ErrInvalidEvent, e.Kind, e.Name)
		}
		if e.Kind == Workload && len(e.Command) == 0 {
			return fmt.Errorf("%w: workload %q has no command", ErrInvalidEvent, e.Name)
		}
	case NetworkOperation:
		if e.NetworkOp == Partition && len(e.Partitions) < 2 {
			return fmt.Errorf("%w: partition %q needs at least two groups", ErrInvalidEvent, e.Name)
		}
	default:
		return fmt.Errorf("%w: unknown kind %v for %q", ErrInvalidEvent, e.Kind, e.Name)
	}
	return nil
}

// Returns a copy of e that shares no slices with it
func (e Event) Clone() Event {
	e.Stack = slices.Clone(e.Stack)
	e.Command = slices.Clone(e.Command)
	e.DependsOn = slices.Clone(e.DependsOn)
	if e.Partitions != nil {
		partitions := make([][]string, len(e.Partitions))
		for i, group := range e.Partitions {
			partitions[i] = slices.Clone(group)
		}
		e.Partitions = partitions
	}
	return e
}

func (e Event) String() string {
	switch e.Kind {
	case StackTrace, GarbageCollection:
		return fmt.Sprintf("{%v %v Node: %v %v %v}", e.Kind, e.Name, e.Node, e.Position, e.Stack)
	case Scheduling:
		return fmt.Sprintf("{%v %v %v Node: %v %v %v}", e.Kind, e.Scheduling, e.Name, e.Node, e.Position, e.Stack)
	case NodeOperation:
		return fmt.Sprintf("{%v %v %v Node: %v}", e.Kind, e.NodeOp, e.Name, e.Node)
	case NetworkOperation:
		return fmt.Sprintf("{%v %v %v %v}", e.Kind, e.NetworkOp, e.Name, e.Partitions)
	case ClockDrift:
		return fmt.Sprintf("{%v %v Node: %v Offset: %v}", e.Kind, e.Name, e.Node, e.Offset)
	case Workload:
		return fmt.Sprintf("{%v %v Node: %v Command: %v}", e.Kind, e.Name, e.Node, e.Command)
	}
	return fmt.Sprintf("{%v %v}", e.Kind, e.Name)
}

// A code location at which internal events are executed
type Point struct {
	Position  Position
	Signature string
}

func (p Point) String() string {
	return fmt.Sprintf("%v %v", p.Position, p.Signature)
}
