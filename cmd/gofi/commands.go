package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"gofi/config"
	"gofi/coordinator"
	"gofi/instrumentation"
	"gofi/sequence"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Load the deployment file and compile its run sequence
func load(path string) (config.Deployment, *sequence.Graph, error) {
	d, err := config.LoadDeploymentFile(path)
	if err != nil {
		return config.Deployment{}, nil, err
	}
	g, err := sequence.Compile(d.RunSequence, d.Events)
	if err != nil {
		return config.Deployment{}, nil, err
	}
	return d, g, nil
}

type compiledEvent struct {
	Name              string   `yaml:"name"`
	Kind              string   `yaml:"kind"`
	Node              string   `yaml:"node,omitempty"`
	DependsOn         []string `yaml:"dependsOn"`
	BlockingCondition string   `yaml:"blockingCondition,omitempty"`
	Unblock           string   `yaml:"unblock,omitempty"`
}

func newCompileCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the run sequence of a deployment and print the dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := load(file)
			if err != nil {
				return err
			}
			out := struct {
				Sequence string          `yaml:"sequence"`
				Events   []compiledEvent `yaml:"events"`
			}{Sequence: g.Expr()}
			for _, evt := range g.Events() {
				out.Events = append(out.Events, compiledEvent{
					Name:              evt.Name,
					Kind:              evt.Kind.String(),
					Node:              evt.Node,
					DependsOn:         evt.DependsOn,
					BlockingCondition: evt.BlockingCondition,
					Unblock:           evt.Unblock,
				})
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "deployment.yaml", "deployment file")
	return cmd
}

func newInstrumentCmd() *cobra.Command {
	var (
		file string
		node string
	)
	cmd := &cobra.Command{
		Use:   "instrument",
		Short: "Print the instrumentation definitions of a deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := load(file)
			if err != nil {
				return err
			}
			return instrumentation.WriteDefinitions(cmd.OutOrStdout(), instrumentation.Definitions(g, node))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "deployment.yaml", "deployment file")
	cmd.Flags().StringVar(&node, "node", "", "only print the definitions of this node")
	return cmd
}

func newCoordinatorCmd() *cobra.Command {
	var (
		file     string
		port     int
		grpcPort int
	)
	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Serve the event coordinator for a deployment until interrupted",
		Long: `Serve the event coordinator for the run sequence of a deployment.

Nodes and external events are managed outside of gofi. The coordinator stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, g, err := load(file)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = d.Coordinator.Port
			}
			if !cmd.Flags().Changed("grpc-port") {
				grpcPort = d.Coordinator.GRPCPort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveCoordinator(ctx, g, port, grpcPort, func(addr net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "coordinator listening on %v\n", addr)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "deployment.yaml", "deployment file")
	cmd.Flags().IntVar(&port, "port", config.DefaultCoordinatorPort, "HTTP port")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "gRPC port, 0 disables the gRPC server")
	return cmd
}

// Serve the coordinator until ctx is done. listening is called with the address of each server.
func serveCoordinator(ctx context.Context, g *sequence.Graph, port, grpcPort int, listening func(net.Addr)) error {
	coord := coordinator.New(g)

	httpSrv := coordinator.NewHTTPServer(coord, nil)
	addr, err := httpSrv.Start(net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	listening(addr)

	if grpcPort > 0 {
		grpcSrv := coordinator.NewGRPCServer(coord, nil)
		addr, err := grpcSrv.Start(net.JoinHostPort("", strconv.Itoa(grpcPort)))
		if err != nil {
			return errors.Join(fmt.Errorf("start grpc server: %w", err), httpSrv.Shutdown(context.Background()))
		}
		defer grpcSrv.Stop()
		listening(addr)
	}

	<-ctx.Done()
	return httpSrv.Shutdown(context.WithoutCancel(ctx))
}
