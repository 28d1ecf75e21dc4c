package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all components. Callers classify with
// errors.Is; wrapping sites add context with fmt.Errorf and %w.
var (
	// ErrTransientRuntime marks a retryable runtime failure (network
	// hiccup, momentary daemon unavailability)
	ErrTransientRuntime = errors.New("transient runtime error")

	// ErrConfiguration marks an invalid configuration or validation
	// failure. Always raised before any side effect; fatal to the
	// operation that hit it.
	ErrConfiguration = errors.New("configuration error")

	// ErrResourceExhausted marks a pool-at-capacity condition the
	// caller may recover from with a fallback
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrNoWarmWorker is the specific exhaustion returned when a claim
	// finds no warm worker. Satisfies errors.Is for ErrResourceExhausted.
	ErrNoWarmWorker = fmt.Errorf("no warm worker available: %w", ErrResourceExhausted)

	// ErrHealthCheckTimeout marks a failed startup health gate. Fatal
	// to the coordinator process.
	ErrHealthCheckTimeout = errors.New("health check timed out")

	// ErrCorruptState marks stale on-disk state (dead lock, orphaned
	// pid marker). Auto-reaped by whoever finds it, never fatal.
	ErrCorruptState = errors.New("corrupt state")
)

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientRuntime)
}

// IsConfiguration reports whether err is a validation failure that
// should fail fast without retries
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsResourceExhausted reports whether err is a capacity condition the
// caller can fall back from
func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
