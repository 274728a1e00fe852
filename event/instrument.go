package event

import "fmt"

// The client protocol call that is spliced into the target at an instrumented point
type Call int

const (
	CallEnforceOrder Call = iota
	CallBlock
	CallGarbageCollection
)

var callNames = map[Call]string{
	CallEnforceOrder:      "enforceOrder",
	CallBlock:             "block",
	CallGarbageCollection: "garbageCollection",
}

func (c Call) String() string {
	if name, ok := callNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Call(%d)", int(c))
}

func (c Call) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Call) UnmarshalText(text []byte) error {
	return unmarshalName(callNames, text, c, "call")
}

// A Definition tells an instrumentation engine where to splice a client protocol call into a node.
type Definition struct {
	Event string `yaml:"event"`
	Node  string `yaml:"node"`
	// The method the call is spliced into. Always the last element of Stack.
	Target   string   `yaml:"target"`
	Stack    []string `yaml:"stack"`
	Position Position `yaml:"position"`
	Call     Call     `yaml:"call"`
	// The Unblock event released by a CallBlock
	Unblock string `yaml:"unblock,omitempty"`
}

func (d Definition) String() string {
	return fmt.Sprintf("{%v %v %v %v %v}", d.Call, d.Event, d.Node, d.Position, d.Target)
}

// Create the instrumentation definition of an event.
//
// Returns false if the event is not instrumented.
// External events are executed by the runner and Unblock events are received by the coordinator when their dependencies are met, so neither are instrumented.
// Block events must be compiled so that their Unblock event is set.
func Instrument(evt Event) (Definition, bool) {
	def := Definition{
		Event:    evt.Name,
		Node:     evt.Node,
		Stack:    evt.Stack,
		Position: evt.Position,
	}
	if len(evt.Stack) > 0 {
		def.Target = evt.Stack[len(evt.Stack)-1]
	}
	switch evt.Kind {
	case StackTrace:
		def.Call = CallEnforceOrder
	case Scheduling:
		if evt.Scheduling == Unblock {
			return Definition{}, false
		}
		def.Call = CallBlock
		def.Unblock = evt.Unblock
	case GarbageCollection:
		def.Call = CallGarbageCollection
	default:
		return Definition{}, false
	}
	return def, true
}
