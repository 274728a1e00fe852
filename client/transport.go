package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gofi/coordinator"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// A Transport carries client protocol requests to the coordinator.
//
// An error means that the coordinator could not answer. Callers treat it as "not yet satisfied" and retry.
type Transport interface {
	Received(ctx context.Context, name string) (bool, error)
	DependenciesMet(ctx context.Context, name string, includeSelf bool) (bool, error)
	BlockDependenciesMet(ctx context.Context, name string) (bool, error)
	Receive(ctx context.Context, name string) error
}

// Talks to the coordinator HTTP server
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// Create a transport for the coordinator at baseURL, e.g. http://localhost:8765.
// If client is nil a client with a short timeout is used.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (t *HTTPTransport) Received(ctx context.Context, name string) (bool, error) {
	return t.get(ctx, "/events/"+url.PathEscape(name))
}

func (t *HTTPTransport) DependenciesMet(ctx context.Context, name string, includeSelf bool) (bool, error) {
	include := "0"
	if includeSelf {
		include = "1"
	}
	return t.get(ctx, "/dependencies/"+url.PathEscape(name)+"?includeEvent="+include)
}

func (t *HTTPTransport) BlockDependenciesMet(ctx context.Context, name string) (bool, error) {
	return t.get(ctx, "/blockDependencies/"+url.PathEscape(name))
}

func (t *HTTPTransport) Receive(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: receive %q: %v", ErrUnexpectedResponse, name, resp.Status)
	}
	return nil
}

func (t *HTTPTransport) get(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("%w: GET %v: %v", ErrUnexpectedResponse, path, resp.Status)
}

// Talks to the coordinator gRPC service
type GRPCTransport struct {
	conn grpc.ClientConnInterface
}

func NewGRPCTransport(conn grpc.ClientConnInterface) *GRPCTransport {
	return &GRPCTransport{conn: conn}
}

func (t *GRPCTransport) Received(ctx context.Context, name string) (bool, error) {
	return t.query(ctx, coordinator.MethodReceived, name)
}

func (t *GRPCTransport) DependenciesMet(ctx context.Context, name string, includeSelf bool) (bool, error) {
	if includeSelf {
		return t.query(ctx, coordinator.MethodDependenciesAndEventMet, name)
	}
	return t.query(ctx, coordinator.MethodDependenciesMet, name)
}

func (t *GRPCTransport) BlockDependenciesMet(ctx context.Context, name string) (bool, error) {
	return t.query(ctx, coordinator.MethodBlockDependenciesMet, name)
}

func (t *GRPCTransport) Receive(ctx context.Context, name string) error {
	return t.conn.Invoke(ctx, coordinator.MethodReceive, wrapperspb.String(name), new(emptypb.Empty))
}

func (t *GRPCTransport) query(ctx context.Context, method, name string) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := t.conn.Invoke(ctx, method, wrapperspb.String(name), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Calls a coordinator in the same process.
// Used by nodes that run inside the test process.
func InProcess(coord *coordinator.Coordinator) Transport {
	return inProcess{coord: coord}
}

type inProcess struct {
	coord *coordinator.Coordinator
}

func (t inProcess) Received(_ context.Context, name string) (bool, error) {
	return t.coord.Received(name), nil
}

func (t inProcess) DependenciesMet(_ context.Context, name string, includeSelf bool) (bool, error) {
	return t.coord.DependenciesMet(name, includeSelf), nil
}

func (t inProcess) BlockDependenciesMet(_ context.Context, name string) (bool, error) {
	return t.coord.BlockDependenciesMet(name), nil
}

func (t inProcess) Receive(_ context.Context, name string) error {
	t.coord.Receive(name)
	return nil
}
