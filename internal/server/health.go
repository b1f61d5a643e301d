package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported for the importer.
const ServiceName = "taxsync.Importer"

// HealthServer serves the standard gRPC health protocol and keeps it in step
// with the receipt store.
type HealthServer struct {
	addr   string
	lis    net.Listener
	Server *grpc.Server
	health *health.Server
	store  Pinger
	logger *slog.Logger
}

func NewHealthServer(addr string, store Pinger, logger *slog.Logger) *HealthServer {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return &HealthServer{addr: addr, Server: s, health: hs, store: store, logger: logger}
}

// Check pings the store once and publishes the result.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("store health check failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	return st
}

// Monitor re-checks the store every interval until ctx is done.
func (s *HealthServer) Monitor(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

func (s *HealthServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.lis = lis
	s.logger.Info("grpc health server listening", "addr", lis.Addr().String())
	return s.Server.Serve(lis)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
