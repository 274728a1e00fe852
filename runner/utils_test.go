package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gofi/config"
	"gofi/event"
	"gofi/failureManager"
)

// A runtime engine that records the actions it performs
type mockEngine struct {
	mu      sync.Mutex
	actions []string
	envs    map[string]map[string]string
	fail    map[string]bool
}

func newMockEngine(fail ...string) *mockEngine {
	me := &mockEngine{envs: map[string]map[string]string{}, fail: map[string]bool{}}
	for _, name := range fail {
		me.fail[name] = true
	}
	return me
}

func (me *mockEngine) record(action, name string) error {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.fail[action+" "+name] {
		return errors.New("engine failure")
	}
	me.actions = append(me.actions, action+" "+name)
	return nil
}

func (me *mockEngine) get() []string {
	me.mu.Lock()
	defer me.mu.Unlock()
	return append([]string{}, me.actions...)
}

func (me *mockEngine) env(node string) map[string]string {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.envs[node]
}

func (me *mockEngine) has(action string) bool {
	for _, a := range me.get() {
		if a == action {
			return true
		}
	}
	return false
}

func (me *mockEngine) funcs() failureManager.Funcs {
	start := func(_ context.Context, node failureManager.Node) error {
		me.mu.Lock()
		me.envs[node.Name] = node.Env
		me.mu.Unlock()
		return me.record("start", node.Name)
	}
	return failureManager.Funcs{
		Start: start,
		Stop:  func(_ context.Context, name string) error { return me.record("stop", name) },
		Kill:  func(_ context.Context, name string) error { return me.record("kill", name) },
		Restart: func(_ context.Context, node failureManager.Node) error {
			return me.record("restart", node.Name)
		},
		Partition: func(_ context.Context, partitions [][]string) error {
			return me.record("partition", "")
		},
		RemovePartition: func(_ context.Context) error { return me.record("removePartition", "") },
		Drift: func(_ context.Context, name string, offset time.Duration) error {
			return me.record("drift", name)
		},
		Command: func(_ context.Context, name string, command []string) error {
			return me.record("command", name)
		},
	}
}

func stackTrace(name string) event.Event {
	return event.NewStackTrace(name, "n1", event.Before, "p.Main.run", "p.Node."+name)
}

func deployment(t *testing.T, expr string, events ...event.Event) config.Deployment {
	t.Helper()
	d, err := config.NewDeployment("test").
		WithNode("n1", "KEY", "value").
		WithNode("n2").
		WithEvent(events...).
		WithRunSequence(expr).
		WithCoordinator("localhost", 0).
		Build()
	if err != nil {
		t.Fatalf("Unexpected error building deployment: %v", err)
	}
	return d
}

func newRunner(t *testing.T, d config.Deployment, engine *mockEngine) *Runner {
	t.Helper()
	r, err := New(d, engine.funcs(), WithPollInterval(5*time.Millisecond), WithWaitInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Unexpected error creating runner: %v", err)
	}
	return r
}

// Wait until cond is true or fail the test
func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %v", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
