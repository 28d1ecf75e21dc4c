package health

import (
	"context"
	"time"
)

// CheckType identifies the probe mechanism a checker uses
type CheckType string

const (
	CheckTypeHTTP    CheckType = "http"
	CheckTypeGRPC    CheckType = "grpc"
	CheckTypeTCP     CheckType = "tcp"
	CheckTypeProcess CheckType = "process"
)

// Result is the outcome of a single probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is implemented by every probe mechanism
type Checker interface {
	// Check performs one probe and returns the result
	Check(ctx context.Context) Result

	// Type returns the probe mechanism
	Type() CheckType
}

// Config holds the probing policy applied on top of a Checker
type Config struct {
	// Interval is the time between probes
	Interval time.Duration

	// Timeout is the maximum time to wait for one probe
	Timeout time.Duration

	// Retries is the number of consecutive failures before the target
	// is considered unhealthy
	Retries int

	// StartPeriod is a grace window after monitoring begins during
	// which failures do not count. Covers slow service starts.
	StartPeriod time.Duration
}

// DefaultConfig returns the policy applied to supervised services
// unless configured otherwise
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		Retries:     3,
		StartPeriod: 0,
	}
}

// Status accumulates probe results for one monitored target
type Status struct {
	// ConsecutiveFailures counts failed probes since the last success
	ConsecutiveFailures int

	// ConsecutiveSuccesses counts successful probes since the last failure
	ConsecutiveSuccesses int

	// LastCheck is when the most recent probe ran
	LastCheck time.Time

	// LastResult is the most recent probe outcome
	LastResult Result

	// Healthy is the aggregated verdict
	Healthy bool

	// StartedAt is when monitoring began for this target
	StartedAt time.Time
}

// NewStatus starts monitoring in the healthy state; the target is
// assumed good until probes say otherwise
func NewStatus() *Status {
	return &Status{
		Healthy:   true,
		StartedAt: time.Now(),
	}
}

// Update folds a probe result into the status. A single success
// restores health; unhealth requires Retries consecutive failures.
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// InStartPeriod reports whether monitoring is still inside the grace
// window
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}
