package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventWorkerCreated  EventType = "worker.created"
	EventWorkerClaimed  EventType = "worker.claimed"
	EventWorkerEvicted  EventType = "worker.evicted"
	EventWorkerRemoved  EventType = "worker.removed"
	EventPoolScaled     EventType = "pool.scaled"
	EventServiceStarted EventType = "service.started"
	EventServiceHealthy EventType = "service.healthy"
	EventServiceStopped EventType = "service.stopped"
	EventDaemonStarted  EventType = "daemon.started"
	EventDaemonStopping EventType = "daemon.stopping"
)

// Event represents one daemon lifecycle event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Worker    string
	Message   string
	Metadata  map[string]string
}

// WorkerEvent builds an event about one worker
func WorkerEvent(eventType EventType, worker, message string) *Event {
	return &Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Worker:  worker,
		Message: message,
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns its channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for distribution. Never blocks the caller
// past the broker buffer; publishing after Stop is a no-op.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscriber, drop rather than stall the pool
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
