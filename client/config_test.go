package client

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	for _, name := range []string{EnvCoordinatorHost, EnvCoordinatorPort, EnvCoordinatorGRPCPort, EnvPollInterval, EnvNode, EnvRunID} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8765", cfg.BaseURL())
	assert.Equal(t, "", cfg.GRPCAddr())
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvCoordinatorHost, "coordinator")
	t.Setenv(EnvCoordinatorPort, "9000")
	t.Setenv(EnvCoordinatorGRPCPort, "9001")
	t.Setenv(EnvPollInterval, "20ms")
	t.Setenv(EnvNode, "n1")
	t.Setenv(EnvRunID, "run")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://coordinator:9000", cfg.BaseURL())
	assert.Equal(t, "coordinator:9001", cfg.GRPCAddr())
	assert.Equal(t, 20*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "n1", cfg.Node)
	assert.Equal(t, "run", cfg.RunID)

	c, _, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, c.pollInterval)
}

func TestLoadConfigFromEnvInvalid(t *testing.T) {
	t.Setenv(EnvCoordinatorPort, "not a port")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}
