package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

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

const (
	pingTimeout      = 10 * time.Second
	apiStopGrace     = 5 * time.Second
	prefetchAttempts = 3
	prefetchDelay    = 2 * time.Second
)

// Runtime is the container runtime surface the coordinator itself
// uses; the pool and provisioner hold their own narrower views of the
// same client
type Runtime interface {
	Ping(ctx context.Context) error
	ListWorkers(ctx context.Context) ([]runtime.ContainerInfo, error)
	ImagePresent(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	Close() error
}

// Sessions is the session metadata surface used during reconcile
type Sessions interface {
	ListSessions() ([]types.SessionRecord, error)
	ReadSession(name string) (*types.SessionRecord, error)
	DeleteSession(name string) error
}

// Coordinator owns the daemon lifecycle: it wires the registry, the
// container runtime, the worker pool, and the vector-store supervisor
// together and runs the periodic reconcile loop.
type Coordinator struct {
	cfg    *config.Config
	logger zerolog.Logger

	store    storage.Store
	rt       Runtime
	prov     *provisioner.Provisioner
	sessions Sessions
	pool     *pool.Manager
	boot     *bootstrap.Bootstrapper
	broker   *events.Broker
	breakers *resilience.Registry

	collector *metrics.Collector
	api       *api.Server

	// Startup progress, consulted by teardown. Only the Run goroutine
	// writes these.
	brokerOn    bool
	poolOn      bool
	collectorOn bool
	apiOn       bool
	markerOn    bool
}

// New wires a coordinator from configuration. It creates the state
// directories, opens the registry, and connects the runtime client;
// nothing is launched until Run.
func New(cfg *config.Config) (*Coordinator, error) {
	for _, dir := range []string{cfg.DataDir, cfg.SessionsDir(), cfg.LocksDir(), cfg.RunDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.NewDockerRuntime()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	prov, err := provisioner.New(rt, provisioner.Options{
		DataDir:       cfg.DataDir,
		AllowedImages: cfg.Worker.AllowedImages,
		ProjectRoots:  cfg.Worker.ProjectRoots,
		ParentAlias:   cfg.Service.ParentAlias,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	broker := events.NewBroker()

	poolMgr, err := pool.NewManager(store, prov, rt, broker, pool.Config{
		Pool: cfg.PoolConfig(),
		Defaults: pool.WorkerDefaults{
			Image:  cfg.Worker.Image,
			Limits: cfg.WorkerLimits(),
		},
		RunDir: cfg.RunDir(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	boot := bootstrap.NewBootstrapper(cfg)
	breakers := resilience.NewRegistry(resilience.BreakerConfig{})

	return &Coordinator{
		cfg:       cfg,
		logger:    log.WithComponent("coordinator"),
		store:     store,
		rt:        rt,
		prov:      prov,
		sessions:  prov,
		pool:      poolMgr,
		boot:      boot,
		broker:    broker,
		breakers:  breakers,
		collector: metrics.NewCollector(store),
		api:       api.NewServer(cfg.API.Listen, store, poolMgr, boot, breakers),
	}, nil
}

// Run starts the daemon and blocks until ctx is cancelled or startup
// fails. Cancellation is the normal shutdown path and returns nil.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.start(ctx); err != nil {
		c.teardown()
		return err
	}

	cause := c.loop(ctx)
	c.teardown()

	if errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}

// start walks the four startup phases in order
func (c *Coordinator) start(ctx context.Context) error {
	// Phase 1: nothing proceeds until the runtime answers
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := c.rt.Ping(pingCtx)
	cancel()
	if err != nil {
		metrics.RegisterComponent("runtime", false, err.Error())
		return fmt.Errorf("container runtime unreachable: %w", err)
	}
	metrics.RegisterComponent("runtime", true, "connected")
	metrics.RegisterComponent("registry", true, "open")
	metrics.RegisterComponent("vector-store", false, "starting")

	if pid, err := ReadPidMarker(c.cfg.RunDir()); err == nil && pid != os.Getpid() && ProcessAlive(pid) {
		return fmt.Errorf("coordinator already running with pid %d", pid)
	}
	if err := writePidMarker(c.cfg.RunDir()); err != nil {
		return fmt.Errorf("failed to write pid marker: %w", err)
	}
	c.markerOn = true

	// Phase 2: launch the vector store while the image prefetch and
	// the lock sweep run alongside it
	c.broker.Start()
	c.brokerOn = true

	bootErr := make(chan error, 1)
	go func() { bootErr <- c.boot.Start(ctx) }()

	prefetchErr := make(chan error, 1)
	go func() { prefetchErr <- c.prefetchImage(ctx) }()

	if swept, err := c.prov.SweepStaleLocks(); err != nil {
		c.logger.Warn().Err(err).Msg("stale lock sweep failed")
	} else if swept > 0 {
		c.logger.Info().Int("reaped", swept).Msg("reaped stale allocation locks")
	}

	if err := <-prefetchErr; err != nil {
		if c.cfg.Worker.LazyPull {
			c.logger.Warn().Err(err).Msg("image prefetch failed, deferring to first spawn")
		} else {
			<-bootErr
			return err
		}
	}

	if err := <-bootErr; err != nil {
		return fmt.Errorf("failed to start vector store: %w", err)
	}

	// Phase 3: the health gate is the only startup-blocking wait
	if err := c.boot.AwaitReady(ctx, c.breakers); err != nil {
		return err
	}
	c.broker.Publish(events.WorkerEvent(events.EventServiceHealthy, "", "vector store serving"))

	// Phase 4: background services
	if c.cfg.Pool.Enabled {
		if err := c.pool.Start(ctx); err != nil {
			return err
		}
		c.poolOn = true
	} else {
		c.logger.Info().Msg("pool maintenance disabled")
	}

	c.collector.Start()
	c.collectorOn = true

	if err := c.api.Start(); err != nil {
		return err
	}
	c.apiOn = true

	c.broker.Publish(events.WorkerEvent(events.EventDaemonStarted, "", "coordinator online"))
	c.logger.Info().
		Str("api", c.cfg.API.Listen).
		Bool("pool", c.cfg.Pool.Enabled).
		Msg("coordinator started")
	return nil
}

// loop runs the periodic reconcile until ctx is cancelled
func (c *Coordinator) loop(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(c.cfg.RegistryRefresh))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.reconcile(ctx)
			c.logHealthSummary()
		}
	}
}

// teardown unwinds whatever start brought up, in reverse order.
// Workers are deliberately left running so interactive sessions
// survive a coordinator restart; auto-remove containers reap
// themselves when they exit.
func (c *Coordinator) teardown() {
	c.logger.Info().Msg("coordinator shutting down")
	if c.brokerOn {
		c.broker.Publish(events.WorkerEvent(events.EventDaemonStopping, "", "coordinator shutting down"))
	}

	c.logOrphanedWorkers()

	if c.apiOn {
		stopCtx, cancel := context.WithTimeout(context.Background(), apiStopGrace)
		if err := c.api.Stop(stopCtx); err != nil {
			c.logger.Warn().Err(err).Msg("api shutdown failed")
		}
		cancel()
	}
	if c.collectorOn {
		c.collector.Stop()
	}
	if c.poolOn {
		if err := c.pool.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("pool shutdown failed")
		}
	}
	if err := c.boot.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("vector store shutdown failed")
	}
	if c.brokerOn {
		c.broker.Stop()
	}

	if _, err := c.prov.SweepStaleLocks(); err != nil {
		c.logger.Warn().Err(err).Msg("final lock sweep failed")
	}
	if c.markerOn {
		removePidMarker(c.cfg.RunDir())
	}

	if err := c.rt.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("runtime client close failed")
	}
	if err := c.store.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("registry close failed")
	}
	c.logger.Info().Msg("coordinator stopped")
}

// logOrphanedWorkers records the workers surviving this shutdown
func (c *Coordinator) logOrphanedWorkers() {
	records, err := c.store.ListWorkers()
	if err != nil {
		c.logger.Warn().Err(err).Msg("could not enumerate workers at shutdown")
		return
	}
	for _, record := range records {
		c.logger.Info().
			Str("worker", record.Name).
			Str("status", string(record.Status)).
			Msg("leaving worker running across restart")
	}
}

// prefetchImage pulls the worker image ahead of the first spawn
func (c *Coordinator) prefetchImage(ctx context.Context) error {
	if c.cfg.Worker.SkipPrefetch {
		c.logger.Info().Msg("worker image prefetch disabled")
		return nil
	}

	image := c.cfg.Worker.Image
	if present, err := c.rt.ImagePresent(ctx, image); err == nil && present {
		c.logger.Debug().Str("image", image).Msg("worker image already present")
		return nil
	}

	c.logger.Info().Str("image", image).Msg("prefetching worker image")
	pull := func() error { return c.rt.PullImage(ctx, image) }
	if err := resilience.RetryWithBackoff(ctx, pull, prefetchAttempts, prefetchDelay); err != nil {
		return fmt.Errorf("failed to prefetch worker image %s: %w", image, err)
	}
	return nil
}

// logHealthSummary emits one aggregate line per reconcile tick
func (c *Coordinator) logHealthSummary() {
	warm, err := c.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return
	}
	busy, err := c.store.ListWorkersByStatus(types.WorkerStatusBusy)
	if err != nil {
		return
	}

	health := metrics.GetHealth()
	event := c.logger.Info().
		Int("warm", len(warm)).
		Int("busy", len(busy)).
		Str("health", health.Status)
	for service, state := range c.breakers.States() {
		event = event.Str("breaker_"+service, string(state))
	}
	event.Msg("pool health")
}
