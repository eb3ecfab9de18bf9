package worker

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the worker's health server
// in addition to the overall ("") status.
const HealthService = "council.worker"

// healthServer exposes the standard gRPC health protocol. The worker is
// SERVING while its heartbeat is being renewed.
type healthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *slog.Logger
}

func startHealthServer(addr string, logger *slog.Logger) (*healthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)

	h := &healthServer{
		grpcServer: grpcServer,
		health:     healthSrv,
		listener:   lis,
		logger:     logger,
	}
	h.setServing(false)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("health server stopped", "error", err)
		}
	}()

	logger.Info("health server listening", "addr", lis.Addr().String())
	return h, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (h *healthServer) Addr() string {
	return h.listener.Addr().String()
}

func (h *healthServer) setServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthService, status)
}

func (h *healthServer) stop() {
	h.health.Shutdown()
	h.grpcServer.GracefulStop()
}
