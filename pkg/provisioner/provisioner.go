package provisioner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/resilience"
	"github.com/hellblazer/steward/pkg/runtime"
	"github.com/hellblazer/steward/pkg/types"
)

// Runtime is the container runtime surface the provisioner needs
type Runtime interface {
	ImagePresent(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	CreateWorker(ctx context.Context, spec runtime.WorkerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	EnsureVolume(ctx context.Context, name string, labels map[string]string) error
}

// Options configures a Provisioner
type Options struct {
	DataDir       string
	AllowedImages []string
	ProjectRoots  []string
	ParentAlias   string

	// SpawnAttempts and SpawnDelay parameterize the create+start retry
	SpawnAttempts int
	SpawnDelay    time.Duration
}

// LaunchPlan describes one worker launch. Build it, then hand it to
// Spawn.
type LaunchPlan struct {
	Name        string
	Image       string
	Cmd         []string
	Env         []string
	WorkingDir  string
	TenantHash  string
	ProjectPath string
	Limits      types.ResourceLimits
	Secrets     map[string][]byte
	Volumes     []types.VolumeBinding
	Labels      map[string]string
	AutoRemove  bool
}

// Provisioner validates launch plans and turns them into running
// workers with compensating cleanup on failure
type Provisioner struct {
	rt     Runtime
	opts   Options
	logger zerolog.Logger
}

// New creates a Provisioner. rt may be nil for read-only session
// access; Spawn and Teardown require a real runtime.
func New(rt Runtime, opts Options) (*Provisioner, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("%w: provisioner requires a data directory", types.ErrConfiguration)
	}
	if opts.SpawnAttempts < 1 {
		opts.SpawnAttempts = 3
	}
	if opts.SpawnDelay <= 0 {
		opts.SpawnDelay = 500 * time.Millisecond
	}

	return &Provisioner{
		rt:     rt,
		opts:   opts,
		logger: log.WithComponent("provisioner"),
	}, nil
}

// WorkerName generates a fresh unique worker name
func WorkerName() string {
	return "steward-worker-" + uuid.New().String()[:8]
}

// Spawn validates plan, stages its mounts and secrets, and launches the
// container, retrying the create+start pair with backoff. On final
// failure every partial artifact (container, staged secrets, session
// file) is removed before the error returns. On success the returned
// record reflects the launched worker; the caller persists it.
func (p *Provisioner) Spawn(ctx context.Context, plan LaunchPlan) (*types.WorkerRecord, error) {
	if plan.Name == "" {
		return nil, fmt.Errorf("%w: launch plan has no worker name", types.ErrConfiguration)
	}
	if err := ValidateImage(plan.Image, p.opts.AllowedImages); err != nil {
		return nil, err
	}

	projectPath := ""
	if plan.ProjectPath != "" {
		canonical, err := ValidateProjectPath(plan.ProjectPath, p.opts.ProjectRoots)
		if err != nil {
			return nil, err
		}
		projectPath = canonical
	}

	release, err := p.acquireLock(plan.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	volumes := append([]types.VolumeBinding{}, plan.Volumes...)
	tenantVolumes := []string{}
	if plan.TenantHash != "" {
		bindings, err := p.EnsureTenantVolumes(ctx, plan.TenantHash)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, bindings...)
		for _, b := range bindings {
			tenantVolumes = append(tenantVolumes, b.Source)
		}
	}
	if projectPath != "" {
		volumes = append(volumes, types.VolumeBinding{Source: projectPath, Target: "/workspace"})
	}

	secretsDir, err := p.stageSecrets(plan.Name, plan.Secrets)
	if err != nil {
		return nil, err
	}
	if secretsDir != "" {
		volumes = append(volumes, types.VolumeBinding{Source: secretsDir, Target: SecretsMountPath, ReadOnly: true})
	}

	if err := p.ensureImage(ctx, plan.Image); err != nil {
		_ = p.cleanupSecrets(plan.Name)
		return nil, err
	}

	spec := runtime.WorkerSpec{
		Name:       plan.Name,
		Image:      plan.Image,
		Cmd:        plan.Cmd,
		Env:        plan.Env,
		WorkingDir: plan.WorkingDir,
		Labels:     plan.Labels,
		Limits:     plan.Limits,
		Volumes:    volumes,
		AutoRemove: plan.AutoRemove,
	}
	if p.opts.ParentAlias != "" {
		spec.ExtraHosts = []string{p.opts.ParentAlias + ":host-gateway"}
	}

	var containerID string
	launch := func() error {
		id, err := p.rt.CreateWorker(ctx, spec)
		if err != nil {
			return err
		}
		if err := p.rt.StartContainer(ctx, id); err != nil {
			// The name must be free again before the next attempt
			_ = p.rt.RemoveContainer(ctx, id, true)
			return err
		}
		containerID = id
		return nil
	}

	if err := resilience.RetryWithBackoff(ctx, launch, p.opts.SpawnAttempts, p.opts.SpawnDelay); err != nil {
		p.logger.Error().Err(err).Str("worker", plan.Name).Msg("spawn failed, compensating")
		_ = p.cleanupSecrets(plan.Name)
		_ = p.DeleteSession(plan.Name)
		return nil, fmt.Errorf("failed to spawn worker %s: %w", plan.Name, err)
	}

	now := time.Now().UTC()
	record := &types.WorkerRecord{
		Name:        plan.Name,
		ContainerID: containerID,
		Status:      types.WorkerStatusWarm,
		CreatedAt:   now,
		Limits:      plan.Limits,
		Volumes:     volumes,
	}
	if plan.TenantHash != "" {
		record.Status = types.WorkerStatusBusy
		record.TenantHash = plan.TenantHash
		record.ProjectPath = projectPath
		record.ClaimedAt = &now
	}

	session := types.SessionRecord{
		Worker:        plan.Name,
		Image:         plan.Image,
		Parent:        fmt.Sprintf("steward[%d]", os.Getpid()),
		ProjectPath:   projectPath,
		CreatedAt:     now,
		Limits:        plan.Limits,
		TenantVolumes: tenantVolumes,
	}
	if err := p.RecordSession(session); err != nil {
		p.logger.Error().Err(err).Str("worker", plan.Name).Msg("session write failed, compensating")
		_ = p.rt.RemoveContainer(ctx, containerID, true)
		_ = p.cleanupSecrets(plan.Name)
		return nil, fmt.Errorf("failed to record session for %s: %w", plan.Name, err)
	}

	p.logger.Info().
		Str("worker", plan.Name).
		Str("container_id", shortID(containerID)).
		Str("image", plan.Image).
		Bool("claimed", plan.TenantHash != "").
		Msg("worker spawned")
	return record, nil
}

// Teardown removes a worker's container and host-side artifacts.
// Idempotent: tearing down an already-removed worker is success.
func (p *Provisioner) Teardown(ctx context.Context, name, containerID string) error {
	target := containerID
	if target == "" {
		target = name
	}
	if err := p.rt.RemoveContainer(ctx, target, true); err != nil {
		return fmt.Errorf("failed to tear down worker %s: %w", name, err)
	}

	if err := p.cleanupSecrets(name); err != nil {
		p.logger.Warn().Err(err).Str("worker", name).Msg("secrets cleanup failed")
	}
	if err := p.DeleteSession(name); err != nil {
		p.logger.Warn().Err(err).Str("worker", name).Msg("session cleanup failed")
	}
	return nil
}

// ensureImage pulls the image when it is not already local
func (p *Provisioner) ensureImage(ctx context.Context, ref string) error {
	present, err := p.rt.ImagePresent(ctx, ref)
	if err != nil {
		return err
	}
	if present {
		return nil
	}
	return p.rt.PullImage(ctx, ref)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
