/*
Package metrics provides Prometheus metrics and process health reporting
for the steward daemon.

All metrics register against the global Prometheus registry at package
init and are exposed by the daemon's local API under /metrics. The same
package tracks per-component health used by the /health and /ready
endpoints.

# Architecture

	┌────────────────── METRICS SYSTEM ───────────────────┐
	│                                                     │
	│  ┌───────────────────────────────────────────┐      │
	│  │         Prometheus Registry               │      │
	│  │  - Global DefaultRegistry                 │      │
	│  │  - MustRegister at package init           │      │
	│  │  - Automatic Go runtime metrics           │      │
	│  └──────────────────┬────────────────────────┘      │
	│                     │                               │
	│  ┌──────────────────▼────────────────────────┐      │
	│  │           Metric Categories               │      │
	│  │                                           │      │
	│  │  Pool: worker counts, claims, evictions   │      │
	│  │  Resilience: breaker state, retries       │      │
	│  │  Coordinator: reconcile passes            │      │
	│  │  Service: vector-store health checks      │      │
	│  └──────────────────┬────────────────────────┘      │
	│                     │                               │
	│  ┌──────────────────▼────────────────────────┐      │
	│  │        HTTP Metrics Endpoint              │      │
	│  │  - Path: /metrics on the local API        │      │
	│  │  - Format: Prometheus text exposition     │      │
	│  │  - Handler: promhttp.Handler()            │      │
	│  └───────────────────────────────────────────┘      │
	└─────────────────────────────────────────────────────┘

# Metrics Catalog

Pool Metrics:

steward_workers_total{status}:
  - Type: Gauge
  - Description: Current workers by status (warm/busy/terminating)
  - Example: steward_workers_total{status="warm"} 2

steward_workers_created_total:
  - Type: Counter
  - Description: Warm workers created since daemon start

steward_workers_claimed_total:
  - Type: Counter
  - Description: Warm workers handed to claiming tenants

steward_workers_evicted_total:
  - Type: Counter
  - Description: Workers removed as idle or scaled away

steward_claim_latency_seconds:
  - Type: Histogram
  - Description: Time from claim request to busy record

steward_claim_misses_total:
  - Type: Counter
  - Description: Claims that found no warm worker available

steward_pool_maintenance_errors_total:
  - Type: Counter
  - Description: Failed steps during maintenance ticks

Resilience Metrics:

steward_breaker_state{service}:
  - Type: Gauge
  - Description: Circuit breaker state (0 closed, 1 half-open, 2 open)
  - Example: steward_breaker_state{service="vector-store"} 0

steward_runtime_retries_total:
  - Type: Counter
  - Description: Retried container runtime operations

Coordinator Metrics:

steward_reconcile_duration_seconds:
  - Type: Histogram
  - Description: Registry reconciliation pass duration

steward_reconciled_records_total:
  - Type: Counter
  - Description: Records dropped because their container disappeared

Service Metrics:

steward_service_health_checks_total{outcome}:
  - Type: Counter
  - Description: Vector-store health probes by outcome

# Health Checker

Components report in via RegisterComponent/UpdateComponent. GetHealth
aggregates every component; GetReadiness gates on the critical set
(runtime, registry, vector-store) so /ready flips to 503 the moment any
of them degrades. HealthHandler, ReadyHandler, and LivenessHandler are
mounted by pkg/api.

# Collector

Pool operations push gauge updates as they mutate state. The Collector
re-reads the registry on a fixed period so the gauges recover from
out-of-band changes such as CLI scaling or reconcile drops.

# Integration Points

pkg/pool, pkg/resilience, pkg/bootstrap, and pkg/coordinator update
metrics inline; pkg/api exposes the handlers; cmd/steward sets the
reported version at startup.
*/
package metrics
