// Package grpc exposes the standard gRPC health service next to the REST
// API, so orchestrators can probe readiness of the storage backend.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/filehost/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StorageService is the health service name that turns SERVING once a
// storage backend has been initialised.
const StorageService = "filehost.storage"

type GRPCServer struct {
	address string
	health  *health.Server
	logger  logging.Logger
}

// NewGRPCServer creates a server whose storage service starts as NOT_SERVING.
func NewGRPCServer(address string, l logging.Logger) *GRPCServer {
	h := health.NewServer()
	h.SetServingStatus(StorageService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &GRPCServer{
		address: address,
		health:  h,
		logger:  l.With("module", "grpc_server"),
	}
}

// SetStorageReady flips the storage service status.
func (s *GRPCServer) SetStorageReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(StorageService, status)
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))

	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
