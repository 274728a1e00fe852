package client

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment variables the runner sets on every node
const (
	EnvCoordinatorHost     = "GOFI_COORDINATOR_HOST"
	EnvCoordinatorPort     = "GOFI_COORDINATOR_PORT"
	EnvCoordinatorGRPCPort = "GOFI_COORDINATOR_GRPC_PORT"
	EnvPollInterval        = "GOFI_POLL_INTERVAL"
	EnvNode                = "GOFI_NODE"
	EnvRunID               = "GOFI_RUN_ID"
)

// Config locates the coordinator from inside a node
type Config struct {
	Host         string        `env:"GOFI_COORDINATOR_HOST" envDefault:"localhost"`
	Port         int           `env:"GOFI_COORDINATOR_PORT" envDefault:"8765"`
	GRPCPort     int           `env:"GOFI_COORDINATOR_GRPC_PORT"`
	PollInterval time.Duration `env:"GOFI_POLL_INTERVAL" envDefault:"100ms"`
	Node         string        `env:"GOFI_NODE"`
	RunID        string        `env:"GOFI_RUN_ID"`
}

func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("client: parse env: %w", err)
	}
	return cfg, nil
}

// The base url of the coordinator HTTP server
func (cfg Config) BaseURL() string {
	return "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// The address of the coordinator gRPC server. Empty if no gRPC port is configured.
func (cfg Config) GRPCAddr() string {
	if cfg.GRPCPort == 0 {
		return ""
	}
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.GRPCPort))
}

// Create a client talking to the coordinator HTTP server configured in the environment
func NewFromEnv(opts ...Option) (*Client, Config, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, Config{}, err
	}
	opts = append([]Option{WithPollInterval(cfg.PollInterval)}, opts...)
	return New(NewHTTPTransport(cfg.BaseURL(), nil), opts...), cfg, nil
}
