/*
Package client provides a Go client for the steward daemon API.

The daemon binds a loopback HTTP listener and answers read-only JSON
endpoints; this package wraps those endpoints with typed methods so CLI
commands and scripts never hand-roll requests.

# Architecture

	┌──────────────────── APPLICATION CODE ─────────────────────┐
	│                                                            │
	│  import "github.com/hellblazer/steward/pkg/client"         │
	│                                                            │
	│  c := client.NewClient("127.0.0.1:7333")                   │
	│  st, err := c.Status()                                     │
	│                                                            │
	└──────────────────────────┬─────────────────────────────────┘
	                           │ HTTP (loopback)
	┌──────────────────────────▼─────────────────────────────────┐
	│                   steward daemon API                       │
	│                                                            │
	│   /status   full daemon document (pool, workers, service)  │
	│   /health   component health, 503 when degraded            │
	│   /ready    critical-component readiness                   │
	└────────────────────────────────────────────────────────────┘

# Usage

Fetching daemon status:

	c := client.NewClient(cfg.API.Listen)
	st, err := c.Status()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d warm / %d busy\n", st.Pool.Warm, st.Pool.Busy)

Checking health:

	doc, err := c.Health()
	if err != nil {
		log.Fatal(err)
	}
	if doc.Status != "healthy" {
		for name, state := range doc.Components {
			fmt.Printf("%s: %s\n", name, state)
		}
	}

# Error Handling

Connection errors surface unchanged so callers can distinguish a
stopped daemon (connection refused) from a wedged one (timeout). The
/health and /ready endpoints answer 503 with a full document when
degraded; both decode normally and report through the document's
Status field rather than through the error return.

Every request is bounded by a ten second timeout. The daemon answers
on loopback, so a timeout means the process is not making progress.

# Integration Points

This package integrates with:

  - pkg/api: decodes its StatusResponse document
  - pkg/metrics: decodes its HealthStatus documents
  - cmd/steward: status command queries the running daemon
*/
package client
