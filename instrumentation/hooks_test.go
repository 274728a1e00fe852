package instrumentation

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gofi/client"
	"gofi/coordinator"
	"gofi/event"
	"gofi/sequence"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	pingMethod  = "/test.Node/Ping"
	writeMethod = "/test.Node/Write"
)

func compile(t *testing.T, expr string, events ...event.Event) *sequence.Graph {
	t.Helper()
	g, err := sequence.Compile(expr, events)
	if err != nil {
		t.Fatalf("Unexpected error compiling %q: %v", expr, err)
	}
	return g
}

func newHooks(t *testing.T, g *sequence.Graph, node string) (*Hooks, *coordinator.Coordinator) {
	coord := coordinator.New(g)
	c := client.New(client.InProcess(coord), client.WithPollInterval(5*time.Millisecond))
	return NewHooks(c, node, Definitions(g, node)), coord
}

// Records the order in which things happen
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(step string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, step)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string{}, tr.steps...)
}

func TestServerInterceptorOrdersNodes(t *testing.T) {
	// n2 may only handle Ping after n1 has handled Write
	g := compile(t, "w*p",
		event.NewStackTrace("w", "n1", event.After, writeMethod),
		event.NewStackTrace("p", "n2", event.Before, pingMethod),
	)
	coord := coordinator.New(g)
	transport := client.InProcess(coord)
	n1 := NewHooks(client.New(transport, client.WithPollInterval(5*time.Millisecond)), "n1", Definitions(g, ""))
	n2 := NewHooks(client.New(transport, client.WithPollInterval(5*time.Millisecond)), "n2", Definitions(g, ""))

	tr := &trace{}
	handler := func(step string) grpc.UnaryHandler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr.add(step)
			return req, nil
		}
	}

	done := make(chan error)
	go func() {
		_, err := n2.UnaryServerInterceptor()(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: pingMethod}, handler("ping"))
		done <- err
	}()

	select {
	case <-done:
		t.Fatalf("Expected ping to wait for write")
	case <-time.After(50 * time.Millisecond):
	}

	resp, err := n1.UnaryServerInterceptor()(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: writeMethod}, handler("write"))
	if err != nil || resp != "req" {
		t.Fatalf("Unexpected result from write. resp: %v, err: %v", resp, err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Unexpected error from ping: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for ping")
	}

	steps := tr.get()
	if len(steps) != 2 || steps[0] != "write" || steps[1] != "ping" {
		t.Errorf("Expected write to be handled before ping. Got %v", steps)
	}
	if !coord.SequenceComplete() {
		t.Errorf("Expected sequence to be complete. Pending: %v", coord.Pending())
	}
}

func TestInterceptorSkipsUninstrumentedMethods(t *testing.T) {
	g := compile(t, "a*p", event.NewStackTrace("a", "n1", event.Before, "p.A.run"), event.NewStackTrace("p", "n1", event.Before, pingMethod))
	hooks, coord := newHooks(t, g, "n1")

	called := false
	_, err := hooks.UnaryServerInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: writeMethod},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			called = true
			return nil, nil
		})
	if err != nil || !called {
		t.Fatalf("Expected uninstrumented handler to be called. err: %v", err)
	}
	if len(coord.Snapshot()) != 0 {
		t.Errorf("Expected no events to be received. Got %v", coord.Snapshot())
	}
}

func TestServerInterceptorCanceled(t *testing.T) {
	g := compile(t, "a*p", event.NewStackTrace("a", "n1", event.Before, "p.A.run"), event.NewStackTrace("p", "n1", event.Before, pingMethod))
	hooks, _ := newHooks(t, g, "n1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hooks.UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: pingMethod},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			t.Errorf("Expected handler not to be called")
			return nil, nil
		})
	if status.Code(err) != codes.Canceled {
		t.Errorf("Expected Canceled. Got %v", err)
	}
}

func TestBlockHook(t *testing.T) {
	g := compile(t, "b*w*u",
		event.NewScheduling("b", "n1", event.Block, event.Before, pingMethod),
		event.NewStackTrace("w", "n2", event.Before, writeMethod),
		event.NewScheduling("u", "n1", event.Unblock, event.Before, pingMethod),
	)
	coord := coordinator.New(g)
	transport := client.InProcess(coord)
	n1 := NewHooks(client.New(transport, client.WithPollInterval(5*time.Millisecond)), "n1", Definitions(g, "n1"))
	n2 := NewHooks(client.New(transport, client.WithPollInterval(5*time.Millisecond)), "n2", Definitions(g, "n2"))

	done := make(chan error)
	go func() {
		_, err := n1.Enter(context.Background(), pingMethod)
		done <- err
	}()
	select {
	case <-done:
		t.Fatalf("Expected ping to be paused until w")
	case <-time.After(50 * time.Millisecond):
	}
	if !coord.Received("b") {
		t.Errorf("Expected b to be received")
	}

	if _, err := n2.Enter(context.Background(), writeMethod); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for unblock")
	}
}

var testServiceDesc = grpc.ServiceDesc{
	ServiceName: "test.Node",
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(wrapperspb.StringValue)
				if err := dec(in); err != nil {
					return nil, err
				}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return wrapperspb.String("pong " + req.(*wrapperspb.StringValue).GetValue()), nil
				}
				if interceptor == nil {
					return handler(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: pingMethod}, handler)
			},
		},
	},
}

func TestInterceptorsOverGRPC(t *testing.T) {
	g := compile(t, "sent*handled",
		event.NewStackTrace("sent", "client", event.Before, pingMethod),
		event.NewStackTrace("handled", "server", event.After, pingMethod),
	)
	coord := coordinator.New(g)
	transport := client.InProcess(coord)
	serverHooks := NewHooks(client.New(transport, client.WithPollInterval(5*time.Millisecond)), "server", Definitions(g, ""))
	clientHooks := NewHooks(client.New(transport, client.WithPollInterval(5*time.Millisecond)), "client", Definitions(g, ""))

	conn := serveBufconn(t, serverHooks, grpc.WithUnaryInterceptor(clientHooks.UnaryClientInterceptor()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := new(wrapperspb.StringValue)
	if err := conn.Invoke(ctx, pingMethod, wrapperspb.String("n1"), out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.GetValue() != "pong n1" {
		t.Errorf("Unexpected response: %v", out.GetValue())
	}
	if !coord.SequenceComplete() {
		t.Errorf("Expected sequence to be complete. Pending: %v", coord.Pending())
	}
}

// Serve the test service with the server interceptor of hooks and dial it over bufconn
func serveBufconn(t *testing.T, hooks *Hooks, opts ...grpc.DialOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(hooks.UnaryServerInterceptor()))
	srv.RegisterService(&testServiceDesc, struct{}{})
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	opts = append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	if err != nil {
		t.Fatalf("Failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGarbageCollectionAfterCallReturns(t *testing.T) {
	// The dependency of gc is received after Ping has returned and its context is canceled
	g := compile(t, "a*gc",
		event.NewStackTrace("a", "n2", event.Before, writeMethod),
		event.NewGarbageCollection("gc", "n1", event.Before, pingMethod),
	)
	coord := coordinator.New(g)
	var collections atomic.Int32
	c := client.New(client.InProcess(coord), client.WithPollInterval(5*time.Millisecond), client.WithGC(func() { collections.Add(1) }))
	conn := serveBufconn(t, NewHooks(c, "n1", Definitions(g, "n1")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, pingMethod, wrapperspb.String("n1"), new(wrapperspb.StringValue)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if coord.Received("gc") {
		t.Fatalf("Expected gc to wait for a")
	}

	coord.Receive("a")
	deadline := time.Now().Add(5 * time.Second)
	for !coord.Received("gc") {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for gc. Pending: %v", coord.Pending())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if collections.Load() != 1 {
		t.Errorf("Expected exactly one garbage collection. Got %v", collections.Load())
	}
}

var callersTest = []struct {
	stack    []string
	expected bool
}{
	{[]string{"p.B.m2"}, true},
	{[]string{"testing.tRunner", "p.B.m2"}, true},
	{[]string{"example.com/never.Caller", "p.B.m2"}, false},
	{[]string{"example.com/never.Caller", "testing.tRunner", "p.B.m2"}, false},
}

func TestEnterMatchesCallers(t *testing.T) {
	for i, test := range callersTest {
		g := compile(t, "e", event.NewStackTrace("e", "n1", event.Before, test.stack...))
		hooks, coord := newHooks(t, g, "n1")
		if _, err := hooks.Enter(context.Background(), "p.B.m2"); err != nil {
			t.Fatalf("Test %v: Unexpected error: %v", i, err)
		}
		if got := coord.Received("e"); got != test.expected {
			t.Errorf("Test %v: Expected e received to be %v with stack %v. Got %v", i, test.expected, test.stack, got)
		}
	}
}

func TestServerInterceptorMatchesTargetOnly(t *testing.T) {
	g := compile(t, "e", event.NewStackTrace("e", "n1", event.Before, "example.com/never.Caller", pingMethod))
	hooks, coord := newHooks(t, g, "n1")

	_, err := hooks.UnaryServerInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: pingMethod},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, nil
		})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !coord.Received("e") {
		t.Errorf("Expected e to be received when the target is called")
	}
}
