package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gofi/event"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDeployment = errors.New("config: invalid deployment")

const (
	DefaultCoordinatorHost = "localhost"
	DefaultCoordinatorPort = 8765
)

// A Deployment describes the nodes of a run, the events that can happen and the order they must happen in.
//
// Deployments are values. Slices and maps are copied when a deployment is built so that changes to the builder do not leak into it.
type Deployment struct {
	Name        string            `yaml:"name"`
	Nodes       []Node            `yaml:"nodes"`
	Events      []event.Event     `yaml:"events"`
	RunSequence string            `yaml:"runSequence"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

type Node struct {
	Name string            `yaml:"name"`
	Env  map[string]string `yaml:"env,omitempty"`
}

// Where the coordinator listens and how nodes reach it
type CoordinatorConfig struct {
	// The host nodes use to reach the coordinator
	Host string `yaml:"host"`
	// Port of the HTTP server. 0 picks a free port.
	Port int `yaml:"port"`
	// Port of the gRPC server. The gRPC server is only started if it is set.
	GRPCPort int `yaml:"grpcPort,omitempty"`
}

// Returns the node with the provided name
func (d Deployment) Node(name string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Validate that the deployment is complete and consistent.
//
// The run sequence itself is validated when it is compiled.
func (d Deployment) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDeployment)
	}
	if d.RunSequence == "" {
		return fmt.Errorf("%w: %v: missing run sequence", ErrInvalidDeployment, d.Name)
	}

	nodes := map[string]bool{}
	for _, n := range d.Nodes {
		if n.Name == "" {
			return fmt.Errorf("%w: %v: node without name", ErrInvalidDeployment, d.Name)
		}
		if nodes[n.Name] {
			return fmt.Errorf("%w: %v: duplicate node %v", ErrInvalidDeployment, d.Name, n.Name)
		}
		nodes[n.Name] = true
	}

	events := map[string]bool{}
	for _, evt := range d.Events {
		if err := evt.Validate(); err != nil {
			return fmt.Errorf("%w: %v: %v", ErrInvalidDeployment, d.Name, err)
		}
		if events[evt.Name] {
			return fmt.Errorf("%w: %v: duplicate event %v", ErrInvalidDeployment, d.Name, evt.Name)
		}
		events[evt.Name] = true
		if evt.Node != "" && !nodes[evt.Node] {
			return fmt.Errorf("%w: %v: event %v refers to unknown node %v", ErrInvalidDeployment, d.Name, evt.Name, evt.Node)
		}
		for _, partition := range evt.Partitions {
			for _, node := range partition {
				if !nodes[node] {
					return fmt.Errorf("%w: %v: event %v refers to unknown node %v", ErrInvalidDeployment, d.Name, evt.Name, node)
				}
			}
		}
	}

	if d.Coordinator.Port < 0 || d.Coordinator.GRPCPort < 0 {
		return fmt.Errorf("%w: %v: negative coordinator port", ErrInvalidDeployment, d.Name)
	}
	return nil
}

func (d Deployment) clone() Deployment {
	out := d
	out.Nodes = make([]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		out.Nodes[i] = Node{Name: n.Name, Env: maps.Clone(n.Env)}
	}
	out.Events = make([]event.Event, len(d.Events))
	for i, evt := range d.Events {
		out.Events[i] = evt.Clone()
	}
	return out
}

func defaultDeployment(name string) Deployment {
	return Deployment{
		Name: name,
		Coordinator: CoordinatorConfig{
			Host: DefaultCoordinatorHost,
			Port: DefaultCoordinatorPort,
		},
	}
}

// Read and validate a YAML deployment.
//
// The coordinator defaults to localhost:8765 when it is not configured.
func LoadDeployment(r io.Reader) (Deployment, error) {
	d := defaultDeployment("")
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Deployment{}, fmt.Errorf("config: decode deployment: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

func LoadDeploymentFile(path string) (Deployment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Deployment{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return LoadDeployment(f)
}

// Write the deployment as YAML
func (d Deployment) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("config: encode deployment: %w", err)
	}
	return enc.Close()
}
