/*
Package types defines the core data structures used throughout Steward.

This package contains the fundamental types that represent Steward's domain
model: worker records, pool sizing policy, session metadata, resource limits,
and the shared error taxonomy. These types are used by all other packages for
state management, persistence, and orchestration logic.

# Architecture

The types package is the foundation of Steward's data model. It defines:

  - Worker lifecycle state (warm, busy, terminating)
  - Resource limits applied to every worker (memory, CPU, process count)
  - Volume bindings (tenant-scoped and shared read-only mounts)
  - Pool sizing policy (floor, ceiling, idle eviction, tick interval)
  - Session metadata written at claim time for external tooling
  - The error taxonomy every component classifies against

All types are designed to be:
  - Serializable (JSON for the registry and session files)
  - Self-documenting (clear field names and comments)
  - Validated at the edges (constants for enums, config validation)

# Core Types

Worker State:
  - WorkerRecord: Registry entry for a single worker container
  - WorkerStatus: Warm, busy, or terminating
  - ResourceLimits: Memory, CPU, and process-count bounds
  - VolumeBinding: One mount into a worker container

Pool Policy:
  - PoolConfig: MinWarm, MaxWarm, IdleTimeout, CheckInterval

Sessions:
  - SessionRecord: Per-claimed-worker metadata file contents

# Error Taxonomy

Five sentinel errors classify every failure in the system:

  - ErrTransientRuntime: Retryable runtime failures, wrapped at the
    runtime boundary and retried by resilience primitives
  - ErrConfiguration: Validation failures raised before side effects
  - ErrResourceExhausted: Capacity conditions with a caller fallback
    (ErrNoWarmWorker is its claim-specific form)
  - ErrHealthCheckTimeout: Fatal startup gate exhaustion
  - ErrCorruptState: Stale locks and pid markers, auto-reaped

Classify with errors.Is or the IsTransient/IsConfiguration/
IsResourceExhausted helpers; add context with fmt.Errorf and %w.

# State Invariants

A warm worker never carries a tenant hash or project path; claiming sets
both together with the busy status in one transition. The warm count
stays within [MinWarm, MaxWarm] under pool maintenance, and a worker
name is never reused while any record or container with that name
exists.

# Usage

	rec := &types.WorkerRecord{
		Name:      "steward-worker-1a2b3c4d",
		Status:    types.WorkerStatusWarm,
		CreatedAt: time.Now(),
		Limits: types.ResourceLimits{
			MemoryBytes: 2 << 30,
			CPUs:        2.0,
			PidsLimit:   256,
		},
	}

	if rec.IsWarm() {
		// eligible for claiming
	}

Classifying an error:

	if err := pool.ClaimWarmWorker(ctx, tenant, path); err != nil {
		if types.IsResourceExhausted(err) {
			// fall back to a cold start
		}
	}

# See Also

  - pkg/storage for WorkerRecord persistence
  - pkg/pool for the state transitions that mutate these types
  - pkg/provisioner for SessionRecord writes
*/
package types
