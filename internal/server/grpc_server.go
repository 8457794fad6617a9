// internal/server/grpc_server.go
package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key reported alongside the overall
// server status.
const ServiceName = "agent-wallet-service"

// GRPCServer exposes the standard health protocol for orchestrators.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
	logger *zap.Logger
}

func NewGRPCServer(addr string, logger *zap.Logger) *GRPCServer {
	s := &GRPCServer{
		server: grpc.NewServer(
			grpc.MaxRecvMsgSize(1024*1024),
			grpc.MaxSendMsgSize(1024*1024),
		),
		health: health.NewServer(),
		addr:   addr,
		logger: logger,
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.SetServing(false)
	return s
}

// Start listens on the configured address and serves until Stop.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info("starting gRPC server", zap.String("addr", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop reports NOT_SERVING and drains in-flight RPCs.
func (s *GRPCServer) Stop() {
	s.logger.Info("stopping gRPC server")
	s.health.Shutdown()
	s.server.GracefulStop()
}
