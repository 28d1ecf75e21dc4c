/*
Package api implements the local status endpoint for the Steward daemon.

The api package serves read-only operational state over loopback HTTP:
process health, pool readiness, the full registry view, and Prometheus
metrics. It is the surface the CLI and local monitoring scrape; it
never mutates state and never listens beyond the configured loopback
address.

# Architecture

	┌──────────── CLIENT (CLI / curl / Prometheus) ───────────┐
	│                                                          │
	│  GET http://127.0.0.1:7333/...                           │
	└────────────────────┬─────────────────────────────────────┘
	                     │
	┌────────────────────▼──── COORDINATOR ────────────────────┐
	│                                                          │
	│  ┌──────────────────────────────────────────────┐        │
	│  │            Status Server (pkg/api)            │       │
	│  │                                               │       │
	│  │  /health   process + component health         │       │
	│  │  /ready    critical components gate           │       │
	│  │  /livez    bare liveness                      │       │
	│  │  /status   pool, service, breakers, workers   │       │
	│  │  /metrics  Prometheus registry                │       │
	│  └──────┬──────────────┬──────────────┬─────────┘        │
	│         │              │              │                  │
	│         ▼              ▼              ▼                  │
	│     registry       pool manager   bootstrapper           │
	│     (bbolt)        (IsRunning)    (Running)              │
	└──────────────────────────────────────────────────────────┘

# Endpoints

/health and /ready delegate to the shared component health tracker:
health reports every registered component, readiness gates on the
critical three (runtime, registry, vector-store).

/status is the CLI's data source: per-worker rows (name, status, age,
tenant, project), warm/busy counts, whether the pool loop is
maintaining, vector-store supervision state, and breaker states.

/metrics exposes the Prometheus registry: worker gauges, claim
counters and latency, breaker states, reconcile durations.

# Integration Points

Used by:
  - cmd/steward: status command reads /status when the daemon is up
  - Monitoring: Prometheus scrapes /metrics, probes hit /ready

Uses:
  - pkg/metrics: health tracker and Prometheus handler
  - pkg/storage: registry listing for worker rows
  - pkg/resilience: breaker state snapshot
*/
package api
