// Package resilience provides the failure-handling primitives used at
// every external boundary: retry with exponential backoff for transient
// faults, and per-service circuit breakers for persistent ones.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────┐
//	│                      Registry                        │
//	│  one breaker per service name, created lazily        │
//	│                                                      │
//	│   "runtime"        "vector-store"      "registry"    │
//	│   ┌─────────┐      ┌─────────┐      ┌─────────┐      │
//	│   │ Breaker │      │ Breaker │      │ Breaker │      │
//	│   └────┬────┘      └────┬────┘      └────┬────┘      │
//	└────────┼────────────────┼────────────────┼───────────┘
//	         ▼                ▼                ▼
//	   closed ──(N consecutive failures)──▶ open
//	     ▲                                   │
//	     │ probe ok              HalfOpenWait elapsed
//	     │                                   ▼
//	     └──────────────── half-open ◀───────┘
//	                          │
//	                          └──(probe fails)──▶ open again
//
// # Core Components
//
// RetryWithBackoff runs an operation up to a fixed number of attempts,
// doubling the wait between rounds. The final attempt's error is
// returned untouched so callers can still classify it with errors.Is
// against the types package sentinels. Waits observe the context.
//
// Breaker guards calls to one named service. Closed, it counts
// consecutive failures and opens at FailureThreshold. Open, it rejects
// immediately with ErrCircuitOpen until HalfOpenWait has elapsed since
// the last failed attempt, then admits exactly one probe. The probe's
// outcome decides: success closes the breaker, failure reopens it and
// refreshes the wait.
//
// Registry owns the breakers, keyed by service name. Components share a
// registry instance injected at construction; Get creates breakers
// lazily with the registry's default policy and Configure installs an
// explicit one. States feeds the aggregate health summary.
//
// # Usage
//
//	breakers := resilience.NewRegistry(resilience.DefaultBreakerConfig)
//
//	err := breakers.Execute("runtime", func() error {
//		return rt.Ping(ctx)
//	})
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//		// Runtime calls are being shed; do not retry
//	}
//
//	err = resilience.RetryWithBackoff(ctx, launch, 3, 500*time.Millisecond)
//
// Retry and breaker compose: a breaker wraps the whole retried
// operation, so one exhausted retry sequence counts as one failure.
//
// # Integration Points
//
//   - pkg/provisioner: retries container launches against transient
//     runtime faults
//   - pkg/bootstrap: the vector-store breaker gates readiness probes
//     during service startup
//   - pkg/coordinator: surfaces Registry.States in the health summary
//   - pkg/metrics: breaker transitions update the breaker state gauge
//
// # See Also
//
//   - pkg/types: error sentinels retries are classified against
//   - pkg/bootstrap: the health gate built on these primitives
package resilience
