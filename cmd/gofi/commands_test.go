package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strings"
	"testing"

	"gofi/event"
	"gofi/instrumentation"
	"gofi/sequence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompileCmd(t *testing.T) {
	out, err := execute(t, "compile", "-f", "testdata/deployment.yaml")
	require.NoError(t, err)

	var compiled struct {
		Sequence string          `yaml:"sequence"`
		Events   []compiledEvent `yaml:"events"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &compiled))
	require.Len(t, compiled.Events, 5)

	deps := map[string][]string{}
	for _, evt := range compiled.Events {
		deps[evt.Name] = evt.DependsOn
	}
	assert.Empty(t, deps["n1Started"])
	assert.Equal(t, []string{"n1Started"}, deps["leaderElected"])
	assert.Equal(t, []string{"split"}, deps["resumeAppend"])
	assert.Equal(t, "resumeAppend", compiled.Events[2].Unblock)
}

func TestInstrumentCmd(t *testing.T) {
	out, err := execute(t, "instrument", "-f", "testdata/deployment.yaml", "--node", "n2")
	require.NoError(t, err)

	defs, err := instrumentation.ReadDefinitions(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "pauseAppend", defs[0].Event)
	assert.Equal(t, event.CallBlock, defs[0].Call)
	assert.Equal(t, "/kv.Raft/AppendEntries", defs[0].Target)
	assert.Equal(t, "resumeAppend", defs[0].Unblock)
}

func TestCmdErrors(t *testing.T) {
	_, err := execute(t, "compile", "-f", "testdata/missing.yaml")
	assert.Error(t, err)

	_, err = execute(t, "--log-level", "loud", "compile", "-f", "testdata/deployment.yaml")
	assert.Error(t, err)
}

func TestServeCoordinator(t *testing.T) {
	g, err := sequence.Compile("a*b", []event.Event{
		event.NewStackTrace("a", "n1", event.Before, "p.A.run"),
		event.NewStackTrace("b", "n1", event.Before, "p.B.run"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var addrs []net.Addr
	err = serveCoordinator(ctx, g, 0, 0, func(addr net.Addr) {
		addrs = append(addrs, addr)
		resp, err := http.Get("http://" + addr.String() + "/dependencies/a")
		if assert.NoError(t, err) {
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}
		cancel()
	})
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}

func TestServeCoordinatorGRPCPortInUse(t *testing.T) {
	g, err := sequence.Compile("a", []event.Event{event.NewStackTrace("a", "n1", event.Before, "p.A.run")})
	require.NoError(t, err)

	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer taken.Close()

	var httpAddr net.Addr
	err = serveCoordinator(context.Background(), g, 0, taken.Addr().(*net.TCPAddr).Port, func(addr net.Addr) {
		httpAddr = addr
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start grpc server")
	require.NotNil(t, httpAddr)

	_, err = http.Get("http://" + httpAddr.String() + "/status")
	assert.Error(t, err, "expected the http server to be shut down")
}
