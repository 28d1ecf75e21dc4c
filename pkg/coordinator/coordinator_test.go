package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hellblazer/steward/pkg/api"
	"github.com/hellblazer/steward/pkg/bootstrap"
	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/events"
	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/metrics"
	"github.com/hellblazer/steward/pkg/pool"
	"github.com/hellblazer/steward/pkg/provisioner"
	"github.com/hellblazer/steward/pkg/resilience"
	"github.com/hellblazer/steward/pkg/runtime"
	"github.com/hellblazer/steward/pkg/storage"
	"github.com/hellblazer/steward/pkg/types"
)

// fakeRuntime satisfies the coordinator, provisioner, and pool runtime
// surfaces at once so one fake can back a whole daemon
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]string // id -> name
	nextID     int

	pingErr    error
	listErr    error
	present    bool
	presentErr error
	pulls      int
	pullErr    error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]string), present: true}
}

func (f *fakeRuntime) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeRuntime) ListWorkers(ctx context.Context) ([]runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	infos := make([]runtime.ContainerInfo, 0, len(f.containers))
	for id, name := range f.containers {
		infos = append(infos, runtime.ContainerInfo{ID: id, Name: name, State: "running"})
	}
	return infos, nil
}

func (f *fakeRuntime) ImagePresent(ctx context.Context, ref string) (bool, error) {
	return f.present, f.presentErr
}

func (f *fakeRuntime) PullImage(ctx context.Context, ref string) error {
	f.mu.Lock()
	f.pulls++
	f.mu.Unlock()
	return f.pullErr
}

func (f *fakeRuntime) Close() error { return nil }

func (f *fakeRuntime) CreateWorker(ctx context.Context, spec runtime.WorkerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("container-%04d", f.nextID)
	f.containers[id] = spec.Name
	return id, nil
}

func (f *fakeRuntime) StartContainer(ctx context.Context, id string) error { return nil }

func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	f.mu.Lock()
	delete(f.containers, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	return nil
}

func (f *fakeRuntime) RenameContainer(ctx context.Context, id, newName string) error { return nil }

func (f *fakeRuntime) Processes(ctx context.Context, id string) ([]string, error) {
	return []string{"sleep infinity"}, nil
}

// seed registers a container as if it were already running
func (f *fakeRuntime) seed(id, name string) {
	f.mu.Lock()
	f.containers[id] = name
	f.mu.Unlock()
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]types.SessionRecord
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]types.SessionRecord)}
}

func (f *fakeSessions) put(rec types.SessionRecord) {
	f.mu.Lock()
	f.sessions[rec.Worker] = rec
	f.mu.Unlock()
}

func (f *fakeSessions) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[name]
	return ok
}

func (f *fakeSessions) ListSessions() ([]types.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]types.SessionRecord, 0, len(f.sessions))
	for _, rec := range f.sessions {
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeSessions) ReadSession(name string) (*types.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[name]
	if !ok {
		return nil, provisioner.ErrSessionNotFound
	}
	return &rec, nil
}

func (f *fakeSessions) DeleteSession(name string) error {
	f.mu.Lock()
	delete(f.sessions, name)
	f.mu.Unlock()
	return nil
}

// TestRunStartsAndShutsDown drives a whole daemon lifecycle against a
// fake runtime and a stand-in vector store
func TestRunStartsAndShutsDown(t *testing.T) {
	// Stand-in vector store: heartbeat endpoint plus gRPC health
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	hbSrv := &http.Server{Handler: mux}
	go func() { _ = hbSrv.Serve(httpLis) }()
	t.Cleanup(func() { _ = hbSrv.Close() })

	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, grpchealth.NewServer())
	go func() { _ = grpcSrv.Serve(grpcLis) }()
	t.Cleanup(grpcSrv.Stop)

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.RegistryRefresh = config.Duration(50 * time.Millisecond)
	cfg.Pool.MinWarm = 1
	cfg.Pool.MaxWarm = 2
	cfg.Pool.CheckInterval = config.Duration(time.Hour)
	cfg.Worker.SkipPrefetch = true
	cfg.Service.Binary = "" // externally managed stand-in
	cfg.Service.Host = "127.0.0.1"
	cfg.Service.HTTPPort = httpLis.Addr().(*net.TCPAddr).Port
	cfg.Service.GRPCPort = grpcLis.Addr().(*net.TCPAddr).Port
	cfg.API.Listen = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())

	store, err := storage.NewBoltStore(cfg.DataDir)
	require.NoError(t, err)

	rt := newFakeRuntime()
	prov, err := provisioner.New(rt, provisioner.Options{
		DataDir:       cfg.DataDir,
		AllowedImages: cfg.Worker.AllowedImages,
		ProjectRoots:  cfg.Worker.ProjectRoots,
		ParentAlias:   cfg.Service.ParentAlias,
	})
	require.NoError(t, err)

	broker := events.NewBroker()
	poolMgr, err := pool.NewManager(store, prov, rt, broker, pool.Config{
		Pool:     cfg.PoolConfig(),
		Defaults: pool.WorkerDefaults{Image: cfg.Worker.Image, Limits: cfg.WorkerLimits()},
		RunDir:   cfg.RunDir(),
	})
	require.NoError(t, err)

	c := &Coordinator{
		cfg:       cfg,
		logger:    log.WithComponent("coordinator"),
		store:     store,
		rt:        rt,
		prov:      prov,
		sessions:  prov,
		pool:      poolMgr,
		boot:      bootstrap.NewBootstrapper(cfg),
		broker:    broker,
		breakers:  resilience.NewRegistry(resilience.BreakerConfig{}),
		collector: metrics.NewCollector(store),
		api:       api.NewServer(cfg.API.Listen, store, poolMgr, nil, nil),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	// The health gate ticks once per second; give startup a margin
	require.Eventually(t, func() bool {
		warm, err := store.ListWorkersByStatus(types.WorkerStatusWarm)
		return err == nil && len(warm) == 1 && poolMgr.IsRunning()
	}, 10*time.Second, 50*time.Millisecond)

	pid, err := ReadPidMarker(cfg.RunDir())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("coordinator did not stop")
	}

	assert.False(t, poolMgr.IsRunning())
	_, err = ReadPidMarker(cfg.RunDir())
	assert.Error(t, err)
}

func prefetchCoordinator(rt *fakeRuntime, skip, lazy bool) *Coordinator {
	return &Coordinator{
		cfg: &config.Config{Worker: config.Worker{
			Image:        "ghcr.io/hellblazer/agent-worker:v3.0.0",
			SkipPrefetch: skip,
			LazyPull:     lazy,
		}},
		logger: log.WithComponent("coordinator"),
		rt:     rt,
	}
}

func TestPrefetchSkipsPresentImage(t *testing.T) {
	rt := newFakeRuntime()
	c := prefetchCoordinator(rt, false, false)

	require.NoError(t, c.prefetchImage(context.Background()))
	assert.Equal(t, 0, rt.pulls)
}

func TestPrefetchPullsMissingImage(t *testing.T) {
	rt := newFakeRuntime()
	rt.present = false
	c := prefetchCoordinator(rt, false, false)

	require.NoError(t, c.prefetchImage(context.Background()))
	assert.Equal(t, 1, rt.pulls)
}

func TestPrefetchDisabled(t *testing.T) {
	rt := newFakeRuntime()
	rt.present = false
	c := prefetchCoordinator(rt, true, false)

	require.NoError(t, c.prefetchImage(context.Background()))
	assert.Equal(t, 0, rt.pulls)
}

func TestPrefetchFailurePropagates(t *testing.T) {
	rt := newFakeRuntime()
	rt.present = false
	rt.pullErr = errors.New("registry unreachable")
	c := prefetchCoordinator(rt, false, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // retry aborts at the first backoff wait

	err := c.prefetchImage(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prefetch worker image")
	assert.Equal(t, 1, rt.pulls)
}
