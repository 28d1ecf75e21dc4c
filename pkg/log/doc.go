/*
Package log provides structured logging for Steward using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and support
filtering by severity for production debugging.

# Architecture

Steward's logging system provides structured logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("pool")                    │          │
	│  │  - WithWorker("steward-worker-1a2b3c4d")    │          │
	│  │  - WithTenant("9f86d081884c")               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "pool",                     │          │
	│  │    "time": "2026-08-25T10:30:00Z",         │          │
	│  │    "message": "warm worker created"         │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF warm worker created component=pool │      │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Conventions

The daemon logs per-tick outcomes at debug, state transitions (worker
created, claimed, evicted; breaker opened) at info, and
degraded-but-nonfatal conditions (no warm worker available, maintenance
step failed) at warn. Fatal is reserved for startup failures that
terminate the coordinator.

Child loggers carry a stable field so operators can filter a single
worker or component across the whole process:

  - component: which subsystem emitted the line
  - worker: worker container name
  - tenant_hash: tenant digest (never the plaintext identity)

# Usage

Initializing (once, at process start):

	log.Init(log.Config{
		Level:      "info",
		JSONOutput: true,
	})

Component logger:

	logger := log.WithComponent("pool")
	logger.Info().Int("warm", 2).Int("busy", 1).Msg("pool maintained")

Error with context:

	logger.Error().Err(err).Str("worker", name).Msg("failed to remove worker")

# Integration Points

Every package obtains its logger through WithComponent at construction
time, so tests can Init with a buffer and assert on output when needed.

# See Also

  - https://github.com/rs/zerolog
*/
package log
