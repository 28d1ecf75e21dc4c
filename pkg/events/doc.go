/*
Package events provides an in-memory broker for Steward lifecycle events.

The events package implements a lightweight bus for broadcasting worker and
service lifecycle changes to interested subscribers. Delivery is asynchronous
and best-effort: publishing never blocks pool or coordinator progress, and a
slow subscriber loses events rather than stalling the daemon.

# Architecture

	┌──────────────────── EVENT BROKER ─────────────────────┐
	│                                                       │
	│  ┌────────────────────────────────────────────┐       │
	│  │              Event Broker                  │       │
	│  │  - In-memory message bus                   │       │
	│  │  - All events broadcast to all subscribers │       │
	│  │  - Non-blocking publish                    │       │
	│  └──────────────────┬─────────────────────────┘       │
	│                     │                                 │
	│  Publisher → Event Channel (buffer: 100)              │
	│       ↓                                               │
	│  Broadcast Loop                                       │
	│       ↓                                               │
	│  Subscriber Channels (buffer: 50 each)                │
	│                                                       │
	│  Full subscriber buffer → event dropped for that      │
	│  subscriber only                                      │
	└───────────────────────────────────────────────────────┘

# Event Types

Worker lifecycle:
  - worker.created: A warm worker joined the pool
  - worker.claimed: A session claimed a warm worker
  - worker.evicted: Idle cleanup removed a worker
  - worker.removed: A worker was explicitly removed

Pool and service:
  - pool.scaled: An operator changed the warm count
  - service.started / service.healthy / service.stopped: Shared
    vector-store supervision
  - daemon.started / daemon.stopping: Coordinator lifecycle

# Usage

Publishing:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	broker.Publish(events.WorkerEvent(events.EventWorkerClaimed,
		"steward-worker-3f2a9c1b", "claimed by tenant 4d7e9a0b1c2f"))

Subscribing:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		fmt.Printf("[%s] %s %s\n", event.Timestamp, event.Type, event.Worker)
	}

# See Also

  - pkg/pool: Publishes worker lifecycle events
  - pkg/bootstrap: Publishes service supervision events
  - pkg/coordinator: Owns the broker lifecycle
*/
package events
