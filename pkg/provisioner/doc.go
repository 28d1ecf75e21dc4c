/*
Package provisioner validates launch plans and turns them into running workers.

The provisioner owns everything that happens between "we want a worker" and "a
container is running": image and project-path validation, tenant volume
provisioning, secret staging, the retried create+start call, and the session
metadata file other components read. Failures compensate: a spawn that cannot
complete removes every artifact it created before returning.

# Architecture

	┌──────────────────── PROVISIONER ──────────────────────────┐
	│                                                           │
	│  LaunchPlan                                               │
	│      │                                                    │
	│  ┌───▼──────────────────────────────────────────┐         │
	│  │            Validation (fails closed)         │         │
	│  │  - ValidateImage: byte-exact allow-list,     │         │
	│  │    mutable tags rejected                     │         │
	│  │  - ValidateProjectPath: symlink + traversal  │         │
	│  │    resolution, allowed roots only            │         │
	│  └───┬──────────────────────────────────────────┘         │
	│      │                                                    │
	│  ┌───▼──────────────────────────────────────────┐         │
	│  │            Staging                           │         │
	│  │  - Allocation lock (mkdir + pid, stale reap) │         │
	│  │  - Tenant volumes: create-if-absent          │         │
	│  │  - Secrets: 0400 files in 0700 dir,          │         │
	│  │    mounted read-only, never env              │         │
	│  └───┬──────────────────────────────────────────┘         │
	│      │                                                    │
	│  ┌───▼──────────────────────────────────────────┐         │
	│  │            Launch                            │         │
	│  │  - create+start under RetryWithBackoff       │         │
	│  │  - partial container removed per attempt     │         │
	│  │  - final failure → compensating cleanup      │         │
	│  └───┬──────────────────────────────────────────┘         │
	│      │                                                    │
	│  ┌───▼──────────────────────────────────────────┐         │
	│  │            Session Metadata                  │         │
	│  │  - one JSON file per worker, 0600            │         │
	│  │  - the only write path others read           │         │
	│  └──────────────────────────────────────────────┘         │
	└───────────────────────────────────────────────────────────┘

# Validation

Both validators fail closed: any reference or path they cannot positively
accept is rejected with a ConfigurationError before anything is created.

Image references must be version-pinned and appear byte-exact in the
configured allow-list. Mutable tags (latest, main, dev, ...) are rejected
even for allow-listed repositories, so a compromised or careless push can
never reach a worker.

Project paths are resolved through symlinks and checked against the allowed
roots after resolution, so a link pointing outside an allowed root is caught
even though its visible path looks fine.

# Tenant Isolation

Tenant identity never appears in plaintext in runtime object names. The
12-hex-char TenantHash derives volume names:

	steward-config-3f2a9c1b4d7e   (mounted at /home/agent/.agent)
	steward-cache-3f2a9c1b4d7e    (mounted at /home/agent/.cache)

Volume creation is idempotent, so concurrent sessions for one tenant share
the same volumes without coordination.

# Usage

	prov, err := provisioner.New(rt, provisioner.Options{
		DataDir:       cfg.DataDir,
		AllowedImages: cfg.Worker.AllowedImages,
		ProjectRoots:  cfg.Worker.ProjectRoots,
	})
	if err != nil {
		return err
	}

	record, err := prov.Spawn(ctx, provisioner.LaunchPlan{
		Name:   provisioner.WorkerName(),
		Image:  cfg.Worker.Image,
		Cmd:    []string{"sleep", "infinity"},
		Limits: cfg.WorkerLimits(),
	})
	if err != nil {
		return err
	}

	// later
	if err := prov.Teardown(ctx, record.Name, record.ContainerID); err != nil {
		return err
	}

# Integration Points

The provisioner is used by:
  - pkg/pool: Spawns warm workers and tears down evicted ones
  - pkg/coordinator: Sweeps stale locks at startup, reads sessions during
    reconciliation
  - cmd/steward: The sessions command lists recorded session metadata

# See Also

  - pkg/runtime: The Docker operations behind spawn and teardown
  - pkg/resilience: The retry wrapper around create+start
  - pkg/pool: Warm pool lifecycle built on Spawn/Teardown
*/
package provisioner
