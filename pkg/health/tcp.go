package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker probes whether a port accepts connections. The bootstrap
// supervisor uses it to detect the moment the vector store binds its
// listeners, before the heavier HTTP and gRPC probes start.
type TCPChecker struct {
	// Address is the host:port to dial (e.g. "127.0.0.1:6333")
	Address string

	// Timeout bounds the connection attempt (default 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a checker for address
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check attempts one connection
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("connection failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("port %s accepting connections", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe mechanism
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
