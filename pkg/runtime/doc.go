/*
Package runtime provides Docker Engine integration for Steward's worker lifecycle.

The runtime package wraps the Docker Engine API client to provide the container
operations Steward needs: image pulls, worker creation with resource limits,
lifecycle transitions, volume management, and the labelled listings that drive
registry reconciliation. It is the only package that imports the Docker SDK;
everything above it works with WorkerSpec, WorkerState, and ContainerInfo.

# Architecture

Steward talks to the local Docker daemon over its default socket, negotiating
the API version at connect time:

	┌──────────────────── DOCKER RUNTIME ───────────────────────┐
	│                                                            │
	│  ┌──────────────────────────────────────────────┐          │
	│  │           DockerRuntime Client               │          │
	│  │  - Endpoint: DOCKER_HOST or default socket   │          │
	│  │  - API version: negotiated per daemon        │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │           Image Operations                   │          │
	│  │  - ImagePresent: local cache check           │          │
	│  │  - PullImage: pull + drain progress stream   │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │         Container Lifecycle                  │          │
	│  │  - CreateWorker: config + limits + binds     │          │
	│  │  - Start / Stop (grace) / Remove (force)     │          │
	│  │  - Rename: claim-time identity transition    │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │         Observation                          │          │
	│  │  - Inspect: typed state + started-at         │          │
	│  │  - ListWorkers: filtered by managed label    │          │
	│  │  - Processes: top output for liveness        │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │         Volume Management                    │          │
	│  │  - EnsureVolume: idempotent named create     │          │
	│  │  - RemoveVolume: missing volume is success   │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Core Components

DockerRuntime:
  - Main client wrapper for daemon operations
  - Created from the environment (DOCKER_HOST, DOCKER_CERT_PATH)
  - Thread-safe for concurrent use by the pool and coordinator

Labels:
  - steward.managed=true marks every container and volume Steward owns
  - steward.worker carries the registry name across claim renames
  - ListWorkers filters on the managed label, so containers created by
    other tools are never touched

Resource Limits:
  - Memory: hard limit in bytes (cgroup memory limit)
  - CPUs: fractional cores via NanoCPUs (2.0 cores = 2e9)
  - PidsLimit: caps fork bombs inside a worker
  - Applied at creation; the daemon enforces them via cgroups

# Error Handling

Daemon failures are wrapped with types.ErrTransientRuntime so callers can
retry them with resilience.RetryWithBackoff:

	if err := rt.StartContainer(ctx, id); err != nil {
		if types.IsTransient(err) {
			// retryable
		}
	}

Not-found conditions are normalized instead of wrapped: Stop, Remove, and
RemoveVolume succeed when the target is already gone, and Inspect returns
ErrContainerNotFound for callers that need to distinguish absence from
daemon failure.

# Usage

Creating a runtime client:

	rt, err := runtime.NewDockerRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}

Launching a worker:

	id, err := rt.CreateWorker(ctx, runtime.WorkerSpec{
		Name:  "steward-worker-3f2a9c1b",
		Image: "ghcr.io/hellblazer/agent-worker:v3.0.0",
		Cmd:   []string{"sleep", "infinity"},
		Limits: types.ResourceLimits{
			MemoryBytes: 2 << 30,
			CPUs:        2.0,
			PidsLimit:   256,
		},
	})
	if err != nil {
		return err
	}
	if err := rt.StartContainer(ctx, id); err != nil {
		rt.RemoveContainer(ctx, id, true)
		return err
	}

Listing managed containers:

	infos, err := rt.ListWorkers(ctx)
	for _, info := range infos {
		fmt.Printf("%s %s created=%s\n", info.Name, info.State, info.CreatedAt)
	}

# Integration Points

The runtime package is used by:
  - pkg/provisioner: Image validation pre-checks, worker spawn, volume setup
  - pkg/pool: Warm worker creation, claim renames, idle eviction
  - pkg/coordinator: Daemon ping at startup, listing for reconciliation

# See Also

  - pkg/provisioner: Validation and launch planning above the runtime
  - pkg/pool: Warm pool lifecycle built on these primitives
  - pkg/types: WorkerRecord, ResourceLimits, and the error taxonomy
*/
package runtime
