/*
Package bootstrap supervises the shared vector-store service for Steward.

The bootstrap package owns everything between "the coordinator wants a
vector store" and "workers can reach one": per-startup credential
issuance, TLS material, config rendering, child process supervision,
and the readiness gate that holds back worker traffic until the service
answers on both of its ports.

# Architecture

	┌──────────────── VECTOR STORE BOOTSTRAP ────────────────┐
	│                                                         │
	│  ┌───────────────────────────────────────────┐         │
	│  │              Bootstrapper                  │         │
	│  │  - Issues API token (32 random bytes, hex) │         │
	│  │  - Issues self-signed TLS server cert      │         │
	│  │  - Renders service.yaml                    │         │
	│  │  - Spawns and monitors the binary          │         │
	│  └──────────────────┬────────────────────────┘         │
	│                     │                                   │
	│                     ▼                                   │
	│  ┌───────────────────────────────────────────┐         │
	│  │           Vector Store Process             │         │
	│  │                                            │         │
	│  │  qdrant --config-path service.yaml         │         │
	│  │                                            │         │
	│  │  HTTP :6333  (TLS, api-key auth)           │         │
	│  │  gRPC :6334  (TLS, query port)             │         │
	│  └──────────────────┬────────────────────────┘         │
	│                     │                                   │
	│                     ▼                                   │
	│  ┌───────────────────────────────────────────┐         │
	│  │              Health Gate                   │         │
	│  │  1. TCP: wait for the HTTP port to bind    │         │
	│  │  2. HTTPS heartbeat via circuit breaker    │         │
	│  │  3. gRPC health confirm on the query port  │         │
	│  └───────────────────────────────────────────┘         │
	└─────────────────────────────────────────────────────────┘

# Core Components

Bootstrapper:
  - Start launches the service and returns once its HTTP port binds
  - Stop with SIGTERM → wait 10s → SIGKILL
  - Monitor goroutine records unexpected exits and flags the
    vector-store component unhealthy
  - Pid marker under the run directory for status reporting
  - Empty Service.Binary disables supervision entirely; the service
    is assumed externally managed

Credential Issuance:
  - Fresh 256-bit API token on every startup, hex encoded
  - Written 0400 to the service directory, never the environment
  - Token reaches the service through its rendered config file

TLS Material:
  - Self-signed RSA 2048 server certificate, 90 day validity
  - Reissued when inside the 30 day rotation window or when the
    configured hosts outgrow the certificate's SANs
  - Probes trust the certificate directly from its PEM, no system
    trust store involvement

Health Gate (AwaitReady):
  - One heartbeat probe per second, 30 tick budget
  - Heartbeat probes route through the vector-store circuit breaker
    (threshold 3) so a dead service stops absorbing requests
  - A passing heartbeat must be confirmed by the gRPC health service
    on the query port before the gate opens
  - Exhausting the budget returns ErrHealthCheckTimeout, which the
    coordinator treats as fatal

# Startup Sequence

 1. Generate token, write to <service-dir>/token (0400)
 2. Ensure server certificate covering localhost, the configured
    host, and any aliases
 3. Render service.yaml with TLS and api-key enforcement enabled
 4. Spawn the binary, stream its output into the component logger
 5. Poll the HTTP port until it accepts connections (30s budget)
 6. AwaitReady holds the coordinator until both ports pass health

# Integration Points

Used by:
  - pkg/coordinator: Start in phase 2, AwaitReady as the phase 3
    barrier, Stop during shutdown
  - cmd/steward: status reporting via Running and the pid marker

Uses:
  - pkg/health: TCP, HTTP, and gRPC checkers
  - pkg/resilience: circuit breaker for heartbeat probes
  - pkg/metrics: vector-store component health
  - pkg/config: Service block (binary, host, ports, aliases)
*/
package bootstrap
