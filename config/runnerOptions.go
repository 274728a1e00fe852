package config

import (
	"log/slog"
	"time"

	"gofi/failureManager"
)

// Configures how often the runner checks whether the dependencies of external events are met

// Default value is 100ms
type PollIntervalOption struct {
	Interval time.Duration
}

func (opt PollIntervalOption) RunnerOpt() {}

// Configures how often Wait checks whether the sequence is complete

// Default value is 1s
type WaitIntervalOption struct {
	Interval time.Duration
}

func (opt WaitIntervalOption) RunnerOpt() {}

// Configures the logger used by the runner and the coordinator

// Default value is slog.Default()
type LoggerOption struct {
	Logger *slog.Logger
}

func (opt LoggerOption) RunnerOpt() {}

// Configures the id of the run. It is passed to every node.

// Default value is a random UUID
type RunIDOption struct {
	ID string
}

func (opt RunIDOption) RunnerOpt() {}

// Configures how many records can be buffered

// Default value is 100
type RecordChanBufferOption struct {
	Size int
}

func (opt RecordChanBufferOption) RunnerOpt() {}

// Configures the runtime engine that deploys the nodes and applies faults

// Default value is an engine that does nothing
type FailureManagerOption struct {
	Fm failureManager.FailureManager
}

func (opt FailureManagerOption) RunnerOpt() {}
