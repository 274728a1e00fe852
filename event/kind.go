package event

import (
	"fmt"
	"strings"
)

// The kind of an event
type Kind int

const (
	StackTrace Kind = iota
	Scheduling
	GarbageCollection
	NodeOperation
	NetworkOperation
	ClockDrift
	Workload
)

var kindNames = map[Kind]string{
	StackTrace:        "stackTrace",
	Scheduling:        "scheduling",
	GarbageCollection: "garbageCollection",
	NodeOperation:     "nodeOperation",
	NetworkOperation:  "networkOperation",
	ClockDrift:        "clockDrift",
	Workload:          "workload",
}

// Returns true for kinds that are executed inside a node
func (k Kind) IsInternal() bool {
	return k == StackTrace || k == Scheduling || k == GarbageCollection
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("event: unknown kind %d", int(k))
	}
	return []byte(name), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	return unmarshalName(kindNames, text, k, "kind")
}

// Whether an internal event happens before or after the target method is executed
type Position int

const (
	Before Position = iota
	After
)

var positionNames = map[Position]string{
	Before: "before",
	After:  "after",
}

func (p Position) String() string {
	if name, ok := positionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Position) UnmarshalText(text []byte) error {
	return unmarshalName(positionNames, text, p, "position")
}

// The operation performed by a Scheduling event
type SchedulingOp int

const (
	Block SchedulingOp = iota
	Unblock
)

var schedulingNames = map[SchedulingOp]string{
	Block:   "block",
	Unblock: "unblock",
}

func (op SchedulingOp) String() string {
	if name, ok := schedulingNames[op]; ok {
		return name
	}
	return fmt.Sprintf("SchedulingOp(%d)", int(op))
}

func (op SchedulingOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *SchedulingOp) UnmarshalText(text []byte) error {
	return unmarshalName(schedulingNames, text, op, "scheduling operation")
}

// The operation performed on a node by a NodeOperation event
type NodeOp int

const (
	Start NodeOp = iota
	Stop
	Kill
	Restart
)

var nodeOpNames = map[NodeOp]string{
	Start:   "start",
	Stop:    "stop",
	Kill:    "kill",
	Restart: "restart",
}

func (op NodeOp) String() string {
	if name, ok := nodeOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("NodeOp(%d)", int(op))
}

func (op NodeOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *NodeOp) UnmarshalText(text []byte) error {
	return unmarshalName(nodeOpNames, text, op, "node operation")
}

// The operation performed on the network by a NetworkOperation event
type NetworkOp int

const (
	Partition NetworkOp = iota
	RemovePartition
)

var networkOpNames = map[NetworkOp]string{
	Partition:       "partition",
	RemovePartition: "removePartition",
}

func (op NetworkOp) String() string {
	if name, ok := networkOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("NetworkOp(%d)", int(op))
}

func (op NetworkOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *NetworkOp) UnmarshalText(text []byte) error {
	return unmarshalName(networkOpNames, text, op, "network operation")
}

func unmarshalName[T comparable](names map[T]string, text []byte, out *T, what string) error {
	for val, name := range names {
		if strings.EqualFold(name, string(text)) {
			*out = val
			return nil
		}
	}
	return fmt.Errorf("event: unknown %v %q", what, string(text))
}
