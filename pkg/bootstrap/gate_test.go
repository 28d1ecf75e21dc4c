package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/resilience"
	"github.com/hellblazer/steward/pkg/types"
)

const testToken = "746573742d746f6b656e"

// gateFixture runs a TLS heartbeat server and a TLS gRPC health server
// using a certificate issued by this package, mirroring the supervised
// service's surface
type gateFixture struct {
	boot      *Bootstrapper
	serving   *grpchealth.Server
	heartbeat *atomic.Int32 // requests seen
	healthy   *atomic.Bool  // heartbeat verdict
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	dir := t.TempDir()
	certPath, keyPath, err := ensureServerCert(dir, []string{"127.0.0.1", "localhost"})
	require.NoError(t, err)
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)
	certPEM, err := os.ReadFile(certPath)
	require.NoError(t, err)

	var requests atomic.Int32
	var healthy atomic.Bool
	healthy.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("api-key") != testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpSrv := &http.Server{
		Handler:   mux,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{pair}},
	}
	go func() { _ = httpSrv.ServeTLS(httpLis, "", "") }()
	t.Cleanup(func() { _ = httpSrv.Close() })

	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcSrv := grpc.NewServer(grpc.Creds(credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{pair},
	})))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	go func() { _ = grpcSrv.Serve(grpcLis) }()
	t.Cleanup(grpcSrv.Stop)

	boot := &Bootstrapper{
		cfg: config.Service{
			Binary:   "qdrant",
			Host:     "127.0.0.1",
			HTTPPort: httpLis.Addr().(*net.TCPAddr).Port,
			GRPCPort: grpcLis.Addr().(*net.TCPAddr).Port,
		},
		serviceDir: dir,
		runDir:     dir,
		logger:     log.WithComponent("bootstrap"),
		gateTick:   100 * time.Millisecond,
		gateBudget: 6,
		token:      testToken,
		certPEM:    certPEM,
	}

	return &gateFixture{boot: boot, serving: hs, heartbeat: &requests, healthy: &healthy}
}

func TestAwaitReadyPassesWhenServing(t *testing.T) {
	f := newGateFixture(t)

	err := f.boot.AwaitReady(context.Background(), resilience.NewRegistry(resilience.BreakerConfig{}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.heartbeat.Load(), int32(1))
}

func TestAwaitReadyTimesOutAndTripsBreaker(t *testing.T) {
	f := newGateFixture(t)
	f.healthy.Store(false)

	err := f.boot.AwaitReady(context.Background(), resilience.NewRegistry(resilience.BreakerConfig{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrHealthCheckTimeout))

	// Three failures open the breaker; remaining ticks short-circuit
	// without touching the service
	assert.Equal(t, int32(3), f.heartbeat.Load())
}

func TestAwaitReadyRequiresQueryPortConfirm(t *testing.T) {
	f := newGateFixture(t)
	f.serving.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	err := f.boot.AwaitReady(context.Background(), resilience.NewRegistry(resilience.BreakerConfig{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrHealthCheckTimeout))

	// The heartbeat keeps passing, so every tick reaches the service
	assert.Equal(t, int32(f.boot.gateBudget), f.heartbeat.Load())
}

func TestAwaitReadyObservesCancellation(t *testing.T) {
	f := newGateFixture(t)
	f.healthy.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.boot.AwaitReady(ctx, resilience.NewRegistry(resilience.BreakerConfig{}))
	assert.True(t, errors.Is(err, context.Canceled))
}
