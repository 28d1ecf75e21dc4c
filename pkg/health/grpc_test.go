package health

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// startHealthServer runs a gRPC server with the standard health service
// on a loopback port
func startHealthServer(t *testing.T) (*grpchealth.Server, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return hs, lis.Addr().String()
}

func TestGRPCCheckerServing(t *testing.T) {
	_, addr := startHealthServer(t)

	result := NewGRPCChecker(addr).Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy against serving server: %s", result.Message)
	}
}

func TestGRPCCheckerNotServing(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	result := NewGRPCChecker(addr).Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy against NOT_SERVING server")
	}
}

func TestGRPCCheckerNamedService(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("qdrant", healthpb.HealthCheckResponse_SERVING)

	known := NewGRPCChecker(addr).WithService("qdrant").Check(context.Background())
	if !known.Healthy {
		t.Errorf("expected healthy for registered service: %s", known.Message)
	}

	// Unknown services come back NOT_FOUND
	unknown := NewGRPCChecker(addr).WithService("nonexistent").Check(context.Background())
	if unknown.Healthy {
		t.Error("expected unhealthy for unknown service")
	}
}

func TestGRPCCheckerUnreachable(t *testing.T) {
	checker := NewGRPCChecker("127.0.0.1:1").WithTimeout(200 * time.Millisecond)

	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for unreachable target")
	}
}

func TestGRPCCheckerType(t *testing.T) {
	if got := NewGRPCChecker("127.0.0.1:6334").Type(); got != CheckTypeGRPC {
		t.Errorf("expected type %s, got %s", CheckTypeGRPC, got)
	}
}
