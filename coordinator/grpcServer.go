package coordinator

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "gofi.Coordinator"

// Full method names of the coordinator gRPC service
const (
	MethodReceived                = "/" + ServiceName + "/Received"
	MethodDependenciesMet         = "/" + ServiceName + "/DependenciesMet"
	MethodDependenciesAndEventMet = "/" + ServiceName + "/DependenciesAndEventMet"
	MethodBlockDependenciesMet    = "/" + ServiceName + "/BlockDependenciesMet"
	MethodReceive                 = "/" + ServiceName + "/Receive"
)

// The gRPC view of the coordinator.
//
// Requests carry the event name in a StringValue, queries answer with a BoolValue.
type CoordinatorServer interface {
	Received(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	DependenciesMet(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	DependenciesAndEventMet(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	BlockDependenciesMet(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Receive(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

type coordinatorServer struct {
	coord *Coordinator
}

func (s coordinatorServer) Received(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.coord.Received(in.GetValue())), nil
}

func (s coordinatorServer) DependenciesMet(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.coord.DependenciesMet(in.GetValue(), false)), nil
}

func (s coordinatorServer) DependenciesAndEventMet(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.coord.DependenciesMet(in.GetValue(), true)), nil
}

func (s coordinatorServer) BlockDependenciesMet(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.coord.BlockDependenciesMet(in.GetValue())), nil
}

func (s coordinatorServer) Receive(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	s.coord.Receive(in.GetValue())
	return &emptypb.Empty{}, nil
}

func unaryMethod[R any](method string, call func(CoordinatorServer, context.Context, *wrapperspb.StringValue) (R, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.StringValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CoordinatorServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CoordinatorServer), ctx, req.(*wrapperspb.StringValue))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Received", CoordinatorServer.Received),
		unaryMethod("DependenciesMet", CoordinatorServer.DependenciesMet),
		unaryMethod("DependenciesAndEventMet", CoordinatorServer.DependenciesAndEventMet),
		unaryMethod("BlockDependenciesMet", CoordinatorServer.BlockDependenciesMet),
		unaryMethod("Receive", CoordinatorServer.Receive),
	},
	Streams: []grpc.StreamDesc{},
}

// Register the coordinator service on a gRPC server
func RegisterGRPC(s grpc.ServiceRegistrar, coord *Coordinator) {
	s.RegisterService(&serviceDesc, coordinatorServer{coord: coord})
}

// Serves the coordinator over gRPC
type GRPCServer struct {
	srv    *grpc.Server
	logger *slog.Logger
}

func NewGRPCServer(coord *Coordinator, logger *slog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(opts...)
	RegisterGRPC(srv, coord)
	return &GRPCServer{srv: srv, logger: logger}
}

// Serve on the provided listener in a separate goroutine
func (s *GRPCServer) Serve(lis net.Listener) {
	go func() {
		if err := s.srv.Serve(lis); err != nil {
			s.logger.Error("coordinator grpc server stopped", "error", err)
		}
	}()
	s.logger.Info("coordinator listening", "transport", "grpc", "addr", lis.Addr().String())
}

// Start serving on addr in a separate goroutine
func (s *GRPCServer) Start(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.Serve(lis)
	return lis.Addr(), nil
}

func (s *GRPCServer) Stop() {
	s.srv.GracefulStop()
}
