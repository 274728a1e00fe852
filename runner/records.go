package runner

import (
	"fmt"
	"time"
)

// A Record reports a runtime action performed by the runner
type Record struct {
	Time time.Time
	// The external event that caused the action. Empty for commands.
	Event  string
	Action string
	Node   string
	Err    error
}

func (r Record) String() string {
	status := "ok"
	if r.Err != nil {
		status = r.Err.Error()
	}
	if r.Event != "" {
		return fmt.Sprintf("[%v - Evt %v Node: %v - %v]", r.Action, r.Event, r.Node, status)
	}
	return fmt.Sprintf("[%v - Node: %v - %v]", r.Action, r.Node, status)
}
