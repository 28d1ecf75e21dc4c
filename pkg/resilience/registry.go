package resilience

import (
	"sync"
)

// Registry owns one breaker per service name, created lazily on first
// use with the registry's default policy. An instance is injected into
// every component that guards external calls; there is no package-level
// registry.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	defaults BreakerConfig
}

// NewRegistry creates an empty registry. A zero-valued defaults falls
// back to DefaultBreakerConfig.
func NewRegistry(defaults BreakerConfig) *Registry {
	if defaults.FailureThreshold < 1 {
		defaults.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if defaults.HalfOpenWait <= 0 {
		defaults.HalfOpenWait = DefaultBreakerConfig.HalfOpenWait
	}

	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// Get returns the breaker for service, creating it with the default
// policy on first use
func (r *Registry) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[service]; ok {
		return b
	}

	b := NewBreaker(service, r.defaults)
	r.breakers[service] = b
	return b
}

// Configure creates (or replaces) the breaker for service with an
// explicit policy and returns it
func (r *Registry) Configure(service string, config BreakerConfig) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := NewBreaker(service, config)
	r.breakers[service] = b
	return b
}

// Execute runs operation through the service's breaker
func (r *Registry) Execute(service string, operation func() error) error {
	return r.Get(service).Execute(operation)
}

// States returns a snapshot of every known breaker's state, keyed by
// service name. Used for the aggregate health summary.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}
	return states
}
