package admin

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "liveview.admin.v1.Admin"
	statsMethod = "/" + ServiceName + "/Stats"
)

// Registry and Hub are the views of the relay the admin service reports on.
type Registry interface {
	Len() int
}

type Hub interface {
	Stats() (rooms, conns int)
}

// adminServer is the handler type for the hand-registered Admin service.
type adminServer interface {
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*adminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "liveview/admin/v1/admin.proto",
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(adminServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(adminServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Server is the gRPC admin listener: standard health checking plus Stats.
type Server struct {
	reg Registry
	hub Hub
	log *slog.Logger

	grpc   *grpc.Server
	health *health.Server
}

func NewServer(reg Registry, hub Hub, log *slog.Logger) *Server {
	s := &Server{reg: reg, hub: hub, log: log, health: health.NewServer()}
	s.grpc = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 2 * time.Minute,
			Time:              30 * time.Second,
			Timeout:           10 * time.Second,
		}),
		grpc.UnaryInterceptor(s.logUnary),
	)
	s.grpc.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Stats reports live codes, rooms and connections.
func (s *Server) Stats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rooms, conns := s.hub.Stats()
	return structpb.NewStruct(map[string]any{
		"live_codes":  s.reg.Len(),
		"rooms":       rooms,
		"connections": conns,
	})
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("admin.listening", "addr", l.Addr().String())
	return s.grpc.Serve(l)
}

// Stop flips health to NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("admin.rpc", "method", info.FullMethod, "dur", time.Since(start), "err", err)
	return resp, err
}

// FetchStats calls Admin/Stats over cc.
func FetchStats(ctx context.Context, cc grpc.ClientConnInterface) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, statsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
