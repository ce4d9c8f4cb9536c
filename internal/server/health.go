package server

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService serves the standard gRPC health protocol. It reports SERVING
// from Start until Drain or Stop.
type HealthService struct {
	addr   string
	logger *zap.Logger
	health *health.Server
	grpc   *grpc.Server

	mu  sync.Mutex
	lis net.Listener
}

// NewHealthService creates a health service bound to addr.
//
// Precondition: logger must be non-nil.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &HealthService{
		addr:   addr,
		logger: logger,
		health: hs,
		grpc:   gs,
	}
}

// Start listens on the configured address and serves until Stop.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	return h.Serve(lis)
}

// Serve serves health checks on lis until Stop.
//
// Postcondition: Returns nil after Stop, or the serve error.
func (h *HealthService) Serve(lis net.Listener) error {
	h.mu.Lock()
	h.lis = lis
	h.mu.Unlock()

	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
	if err := h.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Addr returns the bound address, or "" before Serve.
func (h *HealthService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lis == nil {
		return ""
	}
	return h.lis.Addr().String()
}

// Drain reports NOT_SERVING for every service while the server stays up.
func (h *HealthService) Drain() {
	h.health.Shutdown()
}

// Stop drains and stops the gRPC server.
func (h *HealthService) Stop() {
	h.Drain()
	h.grpc.GracefulStop()
}
