// Package server exposes the daemon's capture state over the gRPC health
// protocol.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/opensync-io/opensync/internal/daemon/capture"
)

// CaptureService is the health service name that tracks the capture engine.
// The empty name reports the daemon process itself.
const CaptureService = "opensync.capture"

const mirrorInterval = time.Second

// StateSource reports the capture engine's current state.
type StateSource interface {
	State() capture.State
}

// Server is the daemon's gRPC server.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	port       int
	health     *health.Server
}

// New creates a new server listening on addr. A port of 0 is allocated
// dynamically.
func New(addr string) (*Server, error) {
	listener, err := (&net.ListenConfig{}).Listen(context.TODO(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	// Get actual port if dynamically allocated
	actualPort := listener.Addr().(*net.TCPAddr).Port

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(CaptureService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &Server{
		grpcServer: grpcServer,
		listener:   listener,
		port:       actualPort,
		health:     hs,
	}, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// SetState publishes a capture state. Only POLLING is reported as serving.
func (s *Server) SetState(state capture.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == capture.StatePolling {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(CaptureService, status)
}

// Mirror publishes src's state until ctx is done.
func (s *Server) Mirror(ctx context.Context, src StateSource) {
	last := src.State()
	s.SetState(last)

	ticker := time.NewTicker(mirrorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if state := src.State(); state != last {
				log.Printf("[server] Capture state %s -> %s", last, state)
				last = state
				s.SetState(state)
			}
		}
	}
}

// Serve starts serving requests. This blocks until Stop is called.
func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

// Stop marks every service as not serving and gracefully stops the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Check queries a daemon's capture health at addr.
func Check(ctx context.Context, addr string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	rsp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: CaptureService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to check health: %w", err)
	}
	return rsp.GetStatus(), nil
}
