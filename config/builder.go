package config

import (
	"gofi/event"
)

// Builds a Deployment.
//
//	d, err := config.NewDeployment("raft").
//		WithNode("n1").
//		WithNode("n2").
//		WithEvent(event.NewNodeOperation("n1Started", "n1", event.Start)).
//		WithRunSequence("n1Started").
//		Build()
type DeploymentBuilder struct {
	d Deployment
}

func NewDeployment(name string) *DeploymentBuilder {
	return &DeploymentBuilder{d: defaultDeployment(name)}
}

// Add a node. env is a list of key value pairs passed to the node process.
func (b *DeploymentBuilder) WithNode(name string, env ...string) *DeploymentBuilder {
	n := Node{Name: name}
	if len(env) > 0 {
		n.Env = make(map[string]string)
		for i := 0; i+1 < len(env); i += 2 {
			n.Env[env[i]] = env[i+1]
		}
	}
	b.d.Nodes = append(b.d.Nodes, n)
	return b
}

func (b *DeploymentBuilder) WithEvent(events ...event.Event) *DeploymentBuilder {
	b.d.Events = append(b.d.Events, events...)
	return b
}

func (b *DeploymentBuilder) WithRunSequence(expr string) *DeploymentBuilder {
	b.d.RunSequence = expr
	return b
}

// Configure where the coordinator HTTP server listens and how nodes reach it
func (b *DeploymentBuilder) WithCoordinator(host string, port int) *DeploymentBuilder {
	b.d.Coordinator.Host = host
	b.d.Coordinator.Port = port
	return b
}

// Also serve the coordinator over gRPC on port
func (b *DeploymentBuilder) WithGRPCPort(port int) *DeploymentBuilder {
	b.d.Coordinator.GRPCPort = port
	return b
}

// Validate and return the deployment
func (b *DeploymentBuilder) Build() (Deployment, error) {
	d := b.d.clone()
	if err := d.Validate(); err != nil {
		return Deployment{}, err
	}
	return d, nil
}
