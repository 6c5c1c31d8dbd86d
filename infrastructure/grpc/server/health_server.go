package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatService is the service name probes can ask about.
const ChatService = "whirl.Chat"

// HealthServer exposes grpc.health.v1 so orchestrators can probe the chat
// server without speaking websocket. It runs as a supervised worker.
type HealthServer struct {
	log     *slog.Logger
	address string
	health  *health.Server
}

func NewHealthServer(log *slog.Logger, address string) *HealthServer {
	return &HealthServer{log: log, address: address, health: health.NewServer()}
}

// Run serves until ctx is done. Each call opens its own listener so a
// restart by the supervisor starts from a clean socket.
func (s *HealthServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve answers health checks on listener until ctx is done.
func (s *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ChatService, healthpb.HealthCheckResponse_SERVING)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC health server", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		srv.GracefulStop()
		return ctx.Err()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown flips every service to NOT_SERVING ahead of the process exit.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
}
