package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/metrics"
)

// State represents a circuit breaker state
type State string

const (
	// StateClosed allows calls through and counts failures
	StateClosed State = "closed"
	// StateOpen rejects calls without invoking the operation
	StateOpen State = "open"
	// StateHalfOpen allows exactly one trial call through
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned when the breaker rejects a call. The
// protected operation was not invoked.
var ErrCircuitOpen = errors.New("circuit open")

// BreakerConfig holds the failure policy for one breaker
type BreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	HalfOpenWait     time.Duration // Open duration before allowing a probe
}

// DefaultBreakerConfig matches the policy applied to runtime calls
// unless a service configures its own.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	HalfOpenWait:     30 * time.Second,
}

// Breaker is a circuit breaker guarding calls to one named service.
//
// Closed counts consecutive failures and opens at the threshold. Open
// rejects immediately until HalfOpenWait has elapsed since the last
// failed attempt, then admits exactly one probe. A successful probe
// closes the breaker and resets the count; a failed probe reopens it
// and refreshes the wait.
type Breaker struct {
	name   string
	config BreakerConfig

	mu           sync.Mutex
	state        State
	failureCount int
	lastAttempt  time.Time

	nowFn  func() time.Time
	logger zerolog.Logger
}

// NewBreaker creates a closed breaker for the named service
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if config.HalfOpenWait <= 0 {
		config.HalfOpenWait = DefaultBreakerConfig.HalfOpenWait
	}

	b := &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		nowFn:  time.Now,
		logger: log.WithComponent("breaker"),
	}
	metrics.SetBreakerState(name, string(StateClosed))
	return b
}

// Execute runs operation if the breaker admits the call. A rejected
// call returns an error wrapping ErrCircuitOpen and never invokes the
// operation. The operation's own error is passed through untouched.
func (b *Breaker) Execute(operation func() error) error {
	probe, err := b.allow()
	if err != nil {
		return err
	}

	opErr := operation()
	b.record(probe, opErr)
	return opErr
}

// allow decides whether a call may proceed. It returns probe=true when
// this call is the single half-open trial.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		if b.nowFn().Sub(b.lastAttempt) < b.config.HalfOpenWait {
			return false, fmt.Errorf("service %s: %w", b.name, ErrCircuitOpen)
		}
		b.transition(StateHalfOpen)
		return true, nil

	case StateHalfOpen:
		// A probe is already in flight
		return false, fmt.Errorf("service %s: %w", b.name, ErrCircuitOpen)
	}

	return false, nil
}

// record applies the outcome of an admitted call
func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		b.failureCount = 0
		return
	}

	if probe || b.state == StateHalfOpen {
		b.lastAttempt = b.nowFn()
		b.transition(StateOpen)
		return
	}

	b.failureCount++
	if b.failureCount >= b.config.FailureThreshold {
		b.lastAttempt = b.nowFn()
		b.transition(StateOpen)
	}
}

// transition changes state; callers hold the mutex
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	metrics.SetBreakerState(b.name, string(to))

	event := b.logger.Info()
	if to == StateOpen {
		event = b.logger.Warn()
	}
	event.
		Str("service", b.name).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("failures", b.failureCount).
		Msg("circuit breaker state change")
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the consecutive failure count
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
