package failureManager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrUnknownNode    = errors.New("failureManager: node has not been started")
	ErrNodeRunning    = errors.New("failureManager: node is already running")
	ErrNodeNotRunning = errors.New("failureManager: node is not running")
)

type Status int

const (
	Running Status = iota
	Stopped
	Killed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Killed:
		return "killed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// The StatusManager keeps track of which nodes are running and which are not.
//
// It wraps a FailureManager and rejects actions that are impossible given the status of the node,
// e.g. stopping a node that has already been killed.
// Subscribers are called with the node name and its new status when the status of a node changes.
type StatusManager struct {
	fm     FailureManager
	logger *slog.Logger

	mu        sync.Mutex
	status    map[string]Status
	callbacks map[string]func(node string, status Status)
}

func NewStatusManager(fm FailureManager, logger *slog.Logger) *StatusManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusManager{
		fm:        fm,
		logger:    logger,
		status:    make(map[string]Status),
		callbacks: make(map[string]func(string, Status)),
	}
}

// Return a map of the node names and whether the node is currently running
func (sm *StatusManager) CorrectNodes() map[string]bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	correct := make(map[string]bool, len(sm.status))
	for name, status := range sm.status {
		correct[name] = status == Running
	}
	return correct
}

// Return the status of the node. False if the node has never been started.
func (sm *StatusManager) Status(name string) (Status, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	status, ok := sm.status[name]
	return status, ok
}

// Return the names of the running nodes
func (sm *StatusManager) Running() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	running := []string{}
	for name, status := range sm.status {
		if status == Running {
			running = append(running, name)
		}
	}
	return running
}

// Subscribe to updates about node status.
//
// id identifies the subscriber. Subscribing again with the same id replaces the callback.
func (sm *StatusManager) Subscribe(id string, callback func(node string, status Status)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.callbacks[id] = callback
}

func (sm *StatusManager) StartNode(ctx context.Context, node Node) error {
	if status, ok := sm.Status(node.Name); ok && status == Running {
		return fmt.Errorf("%w: %v", ErrNodeRunning, node.Name)
	}
	if err := sm.fm.StartNode(ctx, node); err != nil {
		return err
	}
	sm.setStatus(node.Name, Running)
	return nil
}

func (sm *StatusManager) StopNode(ctx context.Context, name string) error {
	if err := sm.requireRunning(name); err != nil {
		return err
	}
	if err := sm.fm.StopNode(ctx, name); err != nil {
		return err
	}
	sm.setStatus(name, Stopped)
	return nil
}

func (sm *StatusManager) KillNode(ctx context.Context, name string) error {
	if err := sm.requireRunning(name); err != nil {
		return err
	}
	if err := sm.fm.KillNode(ctx, name); err != nil {
		return err
	}
	sm.setStatus(name, Killed)
	return nil
}

// Restart a node that has been started before. The node does not have to be running.
func (sm *StatusManager) RestartNode(ctx context.Context, node Node) error {
	if _, ok := sm.Status(node.Name); !ok {
		return fmt.Errorf("%w: %v", ErrUnknownNode, node.Name)
	}
	if err := sm.fm.RestartNode(ctx, node); err != nil {
		return err
	}
	sm.setStatus(node.Name, Running)
	return nil
}

func (sm *StatusManager) NetworkPartition(ctx context.Context, partitions [][]string) error {
	return sm.fm.NetworkPartition(ctx, partitions)
}

func (sm *StatusManager) RemoveNetworkPartition(ctx context.Context) error {
	return sm.fm.RemoveNetworkPartition(ctx)
}

func (sm *StatusManager) ClockDrift(ctx context.Context, name string, offset time.Duration) error {
	if err := sm.requireRunning(name); err != nil {
		return err
	}
	return sm.fm.ClockDrift(ctx, name, offset)
}

func (sm *StatusManager) RunCommandInNode(ctx context.Context, name string, command []string) error {
	if err := sm.requireRunning(name); err != nil {
		return err
	}
	return sm.fm.RunCommandInNode(ctx, name, command)
}

func (sm *StatusManager) requireRunning(name string) error {
	status, ok := sm.Status(name)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownNode, name)
	}
	if status != Running {
		return fmt.Errorf("%w: %v is %v", ErrNodeNotRunning, name, status)
	}
	return nil
}

// Update the status and call all subscribers if it changed
func (sm *StatusManager) setStatus(name string, status Status) {
	sm.mu.Lock()
	old, ok := sm.status[name]
	sm.status[name] = status
	callbacks := make([]func(string, Status), 0, len(sm.callbacks))
	for _, f := range sm.callbacks {
		callbacks = append(callbacks, f)
	}
	sm.mu.Unlock()

	if ok && old == status {
		return
	}
	sm.logger.Info("node status changed", "node", name, "status", status.String())
	for _, f := range callbacks {
		f(name, status)
	}
}
