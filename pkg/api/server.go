package api

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer wraps the standard gRPC health-checking service so
// orchestrators that poll gRPC health (rather than the HTTP /readyz
// endpoint) get the same verdict.
type GRPCHealthServer struct {
	grpcSrv *grpc.Server
	health  *health.Server
}

// NewGRPCHealthServer constructs a gRPC server exposing only the
// standard health service, defaulting the overall ("") service to
// NOT_SERVING until SetServing is called.
func NewGRPCHealthServer() *GRPCHealthServer {
	h := health.NewServer()
	g := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(g, h)
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &GRPCHealthServer{grpcSrv: g, health: h}
}

// SetServing flips the overall serving status, mirroring Server.SetReady
// for gRPC-polling clients.
func (s *GRPCHealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Serve blocks accepting connections on lis until the server stops.
func (s *GRPCHealthServer) Serve(lis net.Listener) error {
	return s.grpcSrv.Serve(lis)
}

// Stop gracefully stops the gRPC server, marking every service
// NOT_SERVING first so in-flight health polls see the shutdown coming.
func (s *GRPCHealthServer) Stop() {
	s.health.Shutdown()
	s.grpcSrv.GracefulStop()
}
