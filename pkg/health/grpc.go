package health

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCChecker probes a gRPC server through the standard health service.
// The vector store's query port speaks gRPC; the bootstrap gate uses
// this probe to confirm the query path after the HTTP heartbeat passes.
type GRPCChecker struct {
	// Target is the host:port to dial
	Target string

	// Service is the service name sent in the check request. Empty
	// queries the server's overall status.
	Service string

	// Timeout bounds dialing plus the check call
	Timeout time.Duration

	creds credentials.TransportCredentials
}

// NewGRPCChecker creates a plaintext checker for target
func NewGRPCChecker(target string) *GRPCChecker {
	return &GRPCChecker{
		Target:  target,
		Timeout: 10 * time.Second,
		creds:   insecure.NewCredentials(),
	}
}

// Check dials the target and queries the health service
func (g *GRPCChecker) Check(ctx context.Context) Result {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	conn, err := grpc.NewClient(g.Target, grpc.WithTransportCredentials(g.creds))
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to connect: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{
		Service: g.Service,
	})
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("health check failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	healthy := resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	message := fmt.Sprintf("gRPC health status %s", resp.GetStatus())

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe mechanism
func (g *GRPCChecker) Type() CheckType {
	return CheckTypeGRPC
}

// WithService sets the service name queried
func (g *GRPCChecker) WithService(service string) *GRPCChecker {
	g.Service = service
	return g
}

// WithTimeout sets the probe timeout
func (g *GRPCChecker) WithTimeout(timeout time.Duration) *GRPCChecker {
	g.Timeout = timeout
	return g
}

// WithRootCAs dials with TLS, trusting certPEM
func (g *GRPCChecker) WithRootCAs(certPEM []byte) (*GRPCChecker, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("no certificates parsed from PEM")
	}

	g.creds = credentials.NewTLS(&tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	})
	return g, nil
}
