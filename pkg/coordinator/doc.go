/*
Package coordinator owns the steward daemon lifecycle. It wires the
worker registry, the container runtime, the provisioner, the warm pool,
and the vector-store supervisor into one process and keeps their state
aligned while the daemon runs.

# Architecture

	┌─────────────────────────────────────────────────┐
	│                   Coordinator                   │
	│                                                 │
	│  ┌──────────┐  ┌───────────┐  ┌──────────────┐  │
	│  │ Registry │  │ Pool      │  │ Vector Store │  │
	│  │ (bbolt)  │  │ Manager   │  │ Bootstrapper │  │
	│  └────┬─────┘  └─────┬─────┘  └──────┬───────┘  │
	│       │              │               │          │
	│  ┌────┴──────────────┴───────────────┴───────┐  │
	│  │            Reconcile Loop                 │  │
	│  │   registry ⇄ live containers ⇄ sessions   │  │
	│  └───────────────────────────────────────────┘  │
	└─────────────────────────────────────────────────┘

# Startup Sequence

Run starts the daemon in four phases and tears down in reverse order
on any failure:

 1. Probe the container runtime and claim the pid marker. A second
    coordinator on the same run directory refuses to start.
 2. Launch the vector store and prefetch the worker image
    concurrently. Prefetch failures are fatal unless lazy pulling is
    configured, in which case the first spawn pays the pull cost.
 3. Gate on vector-store health: heartbeat endpoint first, then the
    query port's gRPC health service.
 4. Start the pool maintenance loop, the metrics collector, and the
    status API, then settle into the periodic reconcile loop.

# Reconciliation

Each tick compares the registry against the live container list.
Records whose containers vanished are dropped, session files without a
backing record are removed, and busy workers missing session metadata
are flagged. Containers themselves are never stopped here; shutdown
deliberately leaves workers running so interactive sessions survive a
coordinator restart.

# Integration Points

cmd/steward builds a Coordinator from configuration and hands it the
signal-bound context. The package consumes pkg/storage, pkg/runtime,
pkg/provisioner, pkg/pool, pkg/bootstrap, pkg/events, pkg/resilience,
and pkg/metrics.
*/
package coordinator
