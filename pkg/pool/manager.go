package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hellblazer/steward/pkg/events"
	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/metrics"
	"github.com/hellblazer/steward/pkg/provisioner"
	"github.com/hellblazer/steward/pkg/runtime"
	"github.com/hellblazer/steward/pkg/storage"
	"github.com/hellblazer/steward/pkg/types"
)

// defaultIdleCommand keeps a warm worker alive without doing work
var defaultIdleCommand = []string{"sleep", "infinity"}

// stopGrace bounds how long Stop waits for the maintenance loop
const stopGrace = 10 * time.Second

// Provisioner is the spawn/teardown surface the pool needs
type Provisioner interface {
	Spawn(ctx context.Context, plan provisioner.LaunchPlan) (*types.WorkerRecord, error)
	Teardown(ctx context.Context, name, containerID string) error
	RecordSession(rec types.SessionRecord) error
	ReadSession(name string) (*types.SessionRecord, error)
	EnsureSharedVolumes(ctx context.Context) ([]types.VolumeBinding, error)
	EnsureTenantVolumes(ctx context.Context, tenantHash string) ([]types.VolumeBinding, error)
}

// Runtime is the container surface the pool needs beyond the
// provisioner: claim renames and the busy liveness heuristic
type Runtime interface {
	RenameContainer(ctx context.Context, id, newName string) error
	Processes(ctx context.Context, id string) ([]string, error)
}

// WorkerDefaults describe how warm workers are launched
type WorkerDefaults struct {
	Image   string
	Command []string
	Env     []string
	Limits  types.ResourceLimits
	Secrets map[string][]byte
}

// Config holds the pool manager configuration
type Config struct {
	Pool     types.PoolConfig
	Defaults WorkerDefaults
	RunDir   string
}

// Manager keeps the warm pool at its configured size and hands warm
// workers to claiming sessions
type Manager struct {
	store  storage.Store
	prov   Provisioner
	rt     Runtime
	broker *events.Broker
	cfg    Config
	logger zerolog.Logger
	nowFn  func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a pool manager. The broker may be nil when event
// distribution is not wanted.
func NewManager(store storage.Store, prov Provisioner, rt Runtime, broker *events.Broker, cfg Config) (*Manager, error) {
	if cfg.Pool.MinWarm < 0 || cfg.Pool.MaxWarm < cfg.Pool.MinWarm {
		return nil, fmt.Errorf("%w: pool bounds are inconsistent (min=%d max=%d)",
			types.ErrConfiguration, cfg.Pool.MinWarm, cfg.Pool.MaxWarm)
	}
	if cfg.Defaults.Image == "" {
		return nil, fmt.Errorf("%w: pool requires a worker image", types.ErrConfiguration)
	}
	if len(cfg.Defaults.Command) == 0 {
		cfg.Defaults.Command = defaultIdleCommand
	}

	return &Manager{
		store:  store,
		prov:   prov,
		rt:     rt,
		broker: broker,
		cfg:    cfg,
		logger: log.WithComponent("pool"),
		nowFn:  time.Now,
	}, nil
}

// SessionContainerName is the container name a worker takes on claim
func SessionContainerName(workerName string) string {
	return "steward-session-" + strings.TrimPrefix(workerName, "steward-worker-")
}

// CreateWarmWorker launches one idle worker and registers it. On any
// failure no record is left behind.
func (m *Manager) CreateWarmWorker(ctx context.Context) (*types.WorkerRecord, error) {
	name := provisioner.WorkerName()

	shared, err := m.prov.EnsureSharedVolumes(ctx)
	if err != nil {
		return nil, err
	}

	plan := provisioner.LaunchPlan{
		Name:    name,
		Image:   m.cfg.Defaults.Image,
		Cmd:     m.cfg.Defaults.Command,
		Env:     m.cfg.Defaults.Env,
		Limits:  m.cfg.Defaults.Limits,
		Secrets: m.cfg.Defaults.Secrets,
		Volumes: shared,
		Labels:  map[string]string{"steward.pool": "warm"},
	}

	record, err := m.prov.Spawn(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err := m.store.CreateWorker(record); err != nil {
		_ = m.prov.Teardown(ctx, name, record.ContainerID)
		return nil, fmt.Errorf("failed to register worker %s: %w", name, err)
	}

	metrics.WorkersCreated.Inc()
	m.publish(events.EventWorkerCreated, name, "warm worker created")
	return record, nil
}

// Claim atomically takes the oldest warm worker for a tenant. The
// registry transition and the container rename together move the worker
// out of the warm set; a failed rename rolls the registry back. No warm
// worker available returns ErrNoWarmWorker.
func (m *Manager) Claim(ctx context.Context, tenantHash, projectPath string) (*types.WorkerRecord, error) {
	if tenantHash == "" {
		return nil, fmt.Errorf("%w: claim requires a tenant hash", types.ErrConfiguration)
	}

	timer := metrics.NewTimer()
	record, err := m.store.ClaimOldestWarm(tenantHash, projectPath, m.nowFn().UTC())
	if err != nil {
		if errors.Is(err, types.ErrNoWarmWorker) {
			metrics.ClaimMisses.Inc()
		}
		return nil, err
	}

	if err := m.rt.RenameContainer(ctx, record.ContainerID, SessionContainerName(record.Name)); err != nil {
		m.revertClaim(record)
		return nil, fmt.Errorf("failed to claim worker %s: %w", record.Name, err)
	}

	m.recordClaimSession(ctx, record, tenantHash, projectPath)

	metrics.WorkersClaimed.Inc()
	timer.ObserveDuration(metrics.ClaimLatency)
	m.publish(events.EventWorkerClaimed, record.Name, "claimed by tenant "+tenantHash)
	m.logger.Info().
		Str("worker", record.Name).
		Str("tenant_hash", tenantHash).
		Msg("warm worker claimed")
	return record, nil
}

// ClaimOrSpawn claims a warm worker, falling back to a cold start bound
// to the tenant when the warm set is empty
func (m *Manager) ClaimOrSpawn(ctx context.Context, tenantHash, projectPath string) (*types.WorkerRecord, error) {
	record, err := m.Claim(ctx, tenantHash, projectPath)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, types.ErrNoWarmWorker) {
		return nil, err
	}

	m.logger.Info().Str("tenant_hash", tenantHash).Msg("warm pool empty, cold starting")
	return m.spawnClaimed(ctx, tenantHash, projectPath)
}

// spawnClaimed cold-starts a worker already bound to its tenant
func (m *Manager) spawnClaimed(ctx context.Context, tenantHash, projectPath string) (*types.WorkerRecord, error) {
	name := provisioner.WorkerName()

	shared, err := m.prov.EnsureSharedVolumes(ctx)
	if err != nil {
		return nil, err
	}

	plan := provisioner.LaunchPlan{
		Name:        name,
		Image:       m.cfg.Defaults.Image,
		Cmd:         m.cfg.Defaults.Command,
		Env:         m.cfg.Defaults.Env,
		Limits:      m.cfg.Defaults.Limits,
		Secrets:     m.cfg.Defaults.Secrets,
		Volumes:     shared,
		TenantHash:  tenantHash,
		ProjectPath: projectPath,
		Labels:      map[string]string{"steward.pool": "cold"},
	}

	record, err := m.prov.Spawn(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err := m.store.CreateWorker(record); err != nil {
		_ = m.prov.Teardown(ctx, name, record.ContainerID)
		return nil, fmt.Errorf("failed to register worker %s: %w", name, err)
	}

	metrics.WorkersCreated.Inc()
	metrics.WorkersClaimed.Inc()
	m.publish(events.EventWorkerClaimed, name, "cold started for tenant "+tenantHash)
	return record, nil
}

// revertClaim returns a claimed record to the warm set after a failed
// runtime transition
func (m *Manager) revertClaim(record *types.WorkerRecord) {
	revert := *record
	revert.Status = types.WorkerStatusWarm
	revert.TenantHash = ""
	revert.ProjectPath = ""
	revert.ClaimedAt = nil
	if err := m.store.UpdateWorker(&revert); err != nil {
		m.logger.Error().Err(err).Str("worker", record.Name).
			Msg("failed to revert claim, reconciliation will repair")
	}
}

// recordClaimSession updates the worker's session file with the claim's
// tenant context. Best effort: the registry transition already holds.
func (m *Manager) recordClaimSession(ctx context.Context, record *types.WorkerRecord, tenantHash, projectPath string) {
	session := types.SessionRecord{
		Worker:    record.Name,
		CreatedAt: record.CreatedAt,
		Limits:    record.Limits,
	}
	if existing, err := m.prov.ReadSession(record.Name); err == nil {
		session = *existing
	}
	session.ProjectPath = projectPath

	if volumes, err := m.prov.EnsureTenantVolumes(ctx, tenantHash); err != nil {
		m.logger.Warn().Err(err).Str("worker", record.Name).Msg("tenant volume provisioning failed")
	} else {
		names := make([]string, 0, len(volumes))
		for _, v := range volumes {
			names = append(names, v.Source)
		}
		session.TenantVolumes = names
	}

	if err := m.prov.RecordSession(session); err != nil {
		m.logger.Warn().Err(err).Str("worker", record.Name).Msg("session update failed")
	}
}

// RemoveWorker stops and removes a worker and deletes its record.
// Idempotent: removing an unknown worker is success.
func (m *Manager) RemoveWorker(ctx context.Context, name string) error {
	containerID := ""
	record, err := m.store.GetWorker(name)
	if err == nil {
		containerID = record.ContainerID
	} else if !errors.Is(err, storage.ErrWorkerNotFound) {
		return err
	}

	if err := m.prov.Teardown(ctx, name, containerID); err != nil {
		return err
	}
	if err := m.store.DeleteWorker(name); err != nil {
		return err
	}

	m.publish(events.EventWorkerRemoved, name, "worker removed")
	m.logger.Info().Str("worker", name).Msg("worker removed")
	return nil
}

// MaintainPool performs one maintenance tick: replenish to MinWarm,
// then clean up idle workers. Individual failures are logged and
// counted; the tick always completes.
func (m *Manager) MaintainPool(ctx context.Context) error {
	warm, err := m.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return fmt.Errorf("failed to list warm workers: %w", err)
	}

	for i := len(warm); i < m.cfg.Pool.MinWarm; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := m.CreateWarmWorker(ctx); err != nil {
			m.logger.Error().Err(err).Msg("failed to replenish warm pool")
			metrics.MaintenanceErrors.Inc()
		}
	}

	if err := m.CleanupIdleWorkers(ctx); err != nil {
		m.logger.Error().Err(err).Msg("idle cleanup failed")
		metrics.MaintenanceErrors.Inc()
	}

	m.updateGauges()
	return nil
}

// CleanupIdleWorkers evicts warm workers idle beyond IdleTimeout while
// never dropping the warm count below MinWarm, then applies the liveness
// heuristic to busy workers
func (m *Manager) CleanupIdleWorkers(ctx context.Context) error {
	now := m.nowFn()

	warm, err := m.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return fmt.Errorf("failed to list warm workers: %w", err)
	}

	// Evict youngest-first so the survivors are the oldest, which the
	// claim path prefers
	sort.Slice(warm, func(i, j int) bool {
		return warm[i].CreatedAt.After(warm[j].CreatedAt)
	})

	removable := len(warm) - m.cfg.Pool.MinWarm
	for _, record := range warm {
		if removable <= 0 {
			break
		}
		if now.Sub(record.CreatedAt) <= m.cfg.Pool.IdleTimeout {
			continue
		}
		if err := m.RemoveWorker(ctx, record.Name); err != nil {
			m.logger.Error().Err(err).Str("worker", record.Name).Msg("failed to evict idle worker")
			continue
		}
		metrics.WorkersEvicted.Inc()
		m.publish(events.EventWorkerEvicted, record.Name, "idle beyond timeout")
		removable--
	}

	busy, err := m.store.ListWorkersByStatus(types.WorkerStatusBusy)
	if err != nil {
		return fmt.Errorf("failed to list busy workers: %w", err)
	}
	for _, record := range busy {
		if record.ClaimedAt == nil || now.Sub(*record.ClaimedAt) <= m.cfg.Pool.IdleTimeout {
			continue
		}
		idle, err := m.busyWorkerIdle(ctx, record)
		if err != nil {
			m.logger.Warn().Err(err).Str("worker", record.Name).Msg("liveness probe failed")
			continue
		}
		if !idle {
			continue
		}
		m.logger.Info().Str("worker", record.Name).Msg("removing abandoned busy worker")
		if err := m.RemoveWorker(ctx, record.Name); err != nil {
			m.logger.Error().Err(err).Str("worker", record.Name).Msg("failed to remove abandoned worker")
			continue
		}
		metrics.WorkersEvicted.Inc()
		m.publish(events.EventWorkerEvicted, record.Name, "abandoned busy worker")
	}

	return nil
}

// busyWorkerIdle reports whether a busy worker shows no session
// activity. Best-effort heuristic: only the idle placeholder remaining
// in the process table counts as abandoned.
func (m *Manager) busyWorkerIdle(ctx context.Context, record *types.WorkerRecord) (bool, error) {
	commands, err := m.rt.Processes(ctx, record.ContainerID)
	if err != nil {
		if errors.Is(err, runtime.ErrContainerNotFound) {
			// Container already gone; the record is stale
			return true, nil
		}
		return false, err
	}

	idle := strings.Join(m.cfg.Defaults.Command, " ")
	for _, cmd := range commands {
		if !strings.Contains(cmd, idle) {
			return false, nil
		}
	}
	return true, nil
}

// ScalePool converges the live warm count to target, clamped to
// [0, MaxWarm]. MinWarm and MaxWarm themselves are not modified; a
// target below MinWarm holds only until the next maintenance tick.
func (m *Manager) ScalePool(ctx context.Context, target int) error {
	clamped := target
	if clamped < 0 {
		clamped = 0
	}
	if clamped > m.cfg.Pool.MaxWarm {
		clamped = m.cfg.Pool.MaxWarm
	}
	if clamped != target {
		m.logger.Warn().Int("target", target).Int("clamped", clamped).Msg("scale target clamped")
	}

	warm, err := m.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return fmt.Errorf("failed to list warm workers: %w", err)
	}

	delta := clamped - len(warm)
	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			if _, err := m.CreateWarmWorker(ctx); err != nil {
				return fmt.Errorf("failed to scale up: %w", err)
			}
		}
	case delta < 0:
		sort.Slice(warm, func(i, j int) bool {
			return warm[i].CreatedAt.After(warm[j].CreatedAt)
		})
		for _, record := range warm[:(-delta)] {
			if err := m.RemoveWorker(ctx, record.Name); err != nil {
				return fmt.Errorf("failed to scale down: %w", err)
			}
			metrics.WorkersEvicted.Inc()
		}
	}

	m.publish(events.EventPoolScaled, "", fmt.Sprintf("warm count converged to %d", clamped))
	m.updateGauges()
	return nil
}

// WarmCount returns the current number of warm workers
func (m *Manager) WarmCount() (int, error) {
	warm, err := m.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return 0, err
	}
	return len(warm), nil
}

func (m *Manager) updateGauges() {
	warm, err := m.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return
	}
	busy, err := m.store.ListWorkersByStatus(types.WorkerStatusBusy)
	if err != nil {
		return
	}
	metrics.SetWorkerCounts(len(warm), len(busy))
}

func (m *Manager) publish(eventType events.EventType, worker, message string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(events.WorkerEvent(eventType, worker, message))
}
