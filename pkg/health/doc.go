/*
Package health provides the probe mechanisms used to watch the shared
vector-store service and the supervised processes around it.

Four probe types cover the surfaces a local service exposes: HTTP for
the heartbeat endpoint, gRPC for the query port's standard health
service, TCP for bare listener detection, and Process for PID-marker
liveness. The bootstrap health gate composes them: TCP to catch the
listeners coming up, then the authenticated HTTPS heartbeat through the
circuit breaker, then a gRPC confirmation before reporting ready.

# Architecture

	┌──────────────────────────────────────────────────────┐
	│                  Checker Interface                   │
	│  • Check(ctx) Result                                 │
	│  • Type() CheckType                                  │
	└───────┬──────────┬───────────┬───────────┬───────────┘
	        ▼          ▼           ▼           ▼
	   ┌────────┐ ┌────────┐ ┌─────────┐ ┌─────────┐
	   │  HTTP  │ │  gRPC  │ │   TCP   │ │ Process │
	   │checker │ │checker │ │ checker │ │ checker │
	   └────┬───┘ └────┬───┘ └────┬────┘ └────┬────┘
	        ▼          ▼          ▼           ▼
	   GET /healthz  Health/   connect    signal 0 to
	   + api-key     Check     host:port  pid marker

# Probe Types

HTTP probes request an endpoint and accept a status code range
(default 200-399). The checker carries its own TLS root pool via
WithRootCAs, since the vector store serves a locally issued
certificate, and authenticates with WithAPIKey.

gRPC probes call the standard grpc.health.v1.Health service and
require SERVING. WithService scopes the query to a named service;
empty asks for the server's overall status.

TCP probes only verify the port accepts connections. Cheap enough to
poll tightly while waiting for a freshly started service to bind.

Process probes read a PID marker file and send signal 0. They cover
the window where the subprocess is alive but its listeners are not up
yet, and let external tools verify supervision.

# Status Tracking

Status folds successive Results into a verdict using a Config policy:
Retries consecutive failures mark the target unhealthy, one success
restores it, and failures inside StartPeriod are forgiven. The
bootstrap supervisor keeps a Status per service and mirrors the
verdict into the metrics component registry.

# Usage

	checker, err := health.NewHTTPChecker("https://127.0.0.1:6333/healthz").
		WithRootCAs(certPEM)
	if err != nil {
		return err
	}
	checker.WithAPIKey(token).WithTimeout(5 * time.Second)

	status := health.NewStatus()
	config := health.DefaultConfig()
	for range ticker.C {
		status.Update(checker.Check(ctx), config)
		if !status.Healthy {
			break
		}
	}

# Integration Points

  - pkg/bootstrap: the health gate drives HTTP and gRPC probes through
    the vector-store circuit breaker; the supervisor polls TCP while
    waiting for listeners
  - pkg/coordinator: mirrors probe verdicts into the component health
    registry backing /health and /ready
  - cmd/steward: the status command uses the process checker against
    PID markers

# See Also

  - pkg/resilience: the circuit breaker probes are routed through
  - pkg/metrics: the component health registry probe verdicts feed
*/
package health
