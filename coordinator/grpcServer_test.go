package coordinator

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const bufSize = 1024 * 1024

func dialBufconn(t *testing.T, coord *Coordinator) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	srv := NewGRPCServer(coord, nil)
	srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func query(t *testing.T, conn *grpc.ClientConn, method, name string) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := new(wrapperspb.BoolValue)
	if err := conn.Invoke(ctx, method, wrapperspb.String(name), out); err != nil {
		t.Fatalf("Unexpected error calling %v: %v", method, err)
	}
	return out.GetValue()
}

func TestGRPCService(t *testing.T) {
	coord := New(endToEndGraph(t))
	conn := dialBufconn(t, coord)

	if query(t, conn, MethodReceived, "n1Started") {
		t.Errorf("Expected n1Started not to be received")
	}
	if query(t, conn, MethodDependenciesMet, "e1") {
		t.Errorf("Expected e1 dependencies not to be met")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Invoke(ctx, MethodReceive, wrapperspb.String("n1Started"), new(emptypb.Empty)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !query(t, conn, MethodReceived, "n1Started") {
		t.Errorf("Expected n1Started to be received")
	}
	if !query(t, conn, MethodDependenciesMet, "e1") {
		t.Errorf("Expected e1 dependencies to be met")
	}
	if query(t, conn, MethodDependenciesAndEventMet, "e1") {
		t.Errorf("Expected e1 itself not to be received")
	}
	if !query(t, conn, MethodBlockDependenciesMet, "e1") {
		t.Errorf("Expected e1 to have no blocking condition")
	}
}
