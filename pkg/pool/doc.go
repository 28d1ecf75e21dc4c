/*
Package pool maintains the warm worker pool and hands workers to sessions.

The pool manager keeps MinWarm idle workers running at all times so a new
session claims one instantly instead of waiting out a container cold start.
A maintenance loop replenishes the pool, evicts workers idle past their
timeout, and applies a best-effort liveness heuristic to claimed workers
whose sessions have ended without cleanup.

# Architecture

	┌───────────────────── POOL MANAGER ────────────────────────┐
	│                                                           │
	│  ┌──────────────────────────────────────────────┐         │
	│  │         Maintenance Loop                     │         │
	│  │  - immediate tick, then every CheckInterval  │         │
	│  │  - replenish warm count to MinWarm           │         │
	│  │  - evict idle (never below MinWarm)          │         │
	│  │  - reap abandoned busy workers               │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                     │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │         Claim Path                           │         │
	│  │  - oldest warm worker first                  │         │
	│  │  - single registry transaction              │          │
	│  │  - container renamed steward-session-*       │         │
	│  │  - empty pool → ErrNoWarmWorker or cold start│         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                     │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │         Scaling                              │         │
	│  │  - converge live warm count to target        │         │
	│  │  - clamped to [0, MaxWarm]                   │         │
	│  └──────────────────────────────────────────────┘         │
	└───────────────────────────────────────────────────────────┘

# The Claim

Claiming must be atomic: two concurrent sessions must never receive the
same worker, and a loser must see a clean miss rather than a corrupt
record. The registry performs the select-and-transition in one
transaction (see pkg/storage); the pool then renames the container so
operators see sessions at a glance:

	steward-worker-3f2a9c1b    (warm, idle)
	steward-session-3f2a9c1b   (claimed)

If the rename fails the registry transition is rolled back and the
worker returns to the warm set.

Selection is oldest CreatedAt first. Eviction above the MinWarm floor is
youngest-first, so the pool converges on its oldest, most-proven
workers.

# Busy Liveness

A claimed worker whose session crashed leaves a Busy record behind
forever. The cleanup pass probes such workers: claimed longer ago than
IdleTimeout and showing nothing but the idle placeholder in their
process table, they are treated as abandoned and removed. The heuristic
is deliberately conservative; a probe failure leaves the worker alone.

# Usage

	mgr, err := pool.NewManager(store, prov, rt, broker, pool.Config{
		Pool: cfg.PoolConfig(),
		Defaults: pool.WorkerDefaults{
			Image:  cfg.Worker.Image,
			Limits: cfg.WorkerLimits(),
		},
		RunDir: cfg.RunDir(),
	})
	if err != nil {
		return err
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	record, err := mgr.ClaimOrSpawn(ctx, tenantHash, projectPath)
	if errors.Is(err, types.ErrNoWarmWorker) {
		// warm-only claim variant; ClaimOrSpawn cold starts instead
	}

# Integration Points

The pool manager is used by:
  - pkg/coordinator: Starts/stops the loop, triggers maintenance during
    reconciliation
  - pkg/api: Claim and scale endpoints
  - cmd/steward: The scale command calls ScalePool

# See Also

  - pkg/storage: The transactional oldest-first claim
  - pkg/provisioner: Spawn and teardown beneath every pool operation
  - pkg/metrics: Pool gauges, claim latency, eviction counters
*/
package pool
