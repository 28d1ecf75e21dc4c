package types

import (
	"time"
)

// WorkerStatus represents the lifecycle state of a worker container
type WorkerStatus string

const (
	// WorkerStatusWarm means the worker is provisioned but not yet claimed
	WorkerStatusWarm WorkerStatus = "warm"
	// WorkerStatusBusy means the worker is bound to a tenant session
	WorkerStatusBusy WorkerStatus = "busy"
	// WorkerStatusTerminating means the worker is being stopped and removed
	WorkerStatusTerminating WorkerStatus = "terminating"
)

// ResourceLimits bounds a worker container's resource consumption
type ResourceLimits struct {
	MemoryBytes int64   `json:"memory_bytes"` // Hard memory limit in bytes
	CPUs        float64 `json:"cpus"`         // CPU quota in cores (1.5 = one and a half cores)
	PidsLimit   int64   `json:"pids_limit"`   // Maximum process count inside the container
}

// VolumeBinding describes a single volume mounted into a worker
type VolumeBinding struct {
	Source   string `json:"source"`    // Named volume or host path
	Target   string `json:"target"`    // Mount point inside the container
	ReadOnly bool   `json:"read_only"` // Mount read-only
}

// WorkerRecord is the registry entry for one worker container.
// Created by the provisioner, mutated by the pool manager on claim and
// eviction, and deleted together with the backing container.
type WorkerRecord struct {
	Name        string          `json:"name"`         // Unique worker name, never reused while the record exists
	ContainerID string          `json:"container_id"` // Runtime container ID
	Status      WorkerStatus    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`   // Set when claimed, nil while warm
	TenantHash  string          `json:"tenant_hash,omitempty"`  // Empty while warm
	ProjectPath string          `json:"project_path,omitempty"` // Empty while warm
	Limits      ResourceLimits  `json:"limits"`
	Volumes     []VolumeBinding `json:"volumes,omitempty"`
}

// IsWarm reports whether the worker is provisioned and unclaimed
func (w *WorkerRecord) IsWarm() bool {
	return w.Status == WorkerStatusWarm
}

// IsBusy reports whether the worker is bound to a tenant session
func (w *WorkerRecord) IsBusy() bool {
	return w.Status == WorkerStatusBusy
}

// Age returns how long the worker has existed relative to now
func (w *WorkerRecord) Age(now time.Time) time.Duration {
	return now.Sub(w.CreatedAt)
}

// PoolConfig holds the warm pool sizing policy. Immutable for the
// lifetime of a pool manager instance; the scale operation changes the
// live warm count, never these values.
type PoolConfig struct {
	MinWarm       int           `json:"min_warm" yaml:"min_warm"`             // Floor maintained by the pool loop
	MaxWarm       int           `json:"max_warm" yaml:"max_warm"`             // Ceiling enforced on scale requests
	IdleTimeout   time.Duration `json:"idle_timeout" yaml:"idle_timeout"`     // Idle worker eviction threshold
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"` // Maintenance tick interval
}

// SessionRecord is the per-claimed-worker metadata file written at
// claim time and read by external listing tools. It is the only
// cross-component read surface besides the registry itself.
type SessionRecord struct {
	Worker        string         `json:"worker"`         // Worker name, also the file key
	Image         string         `json:"image"`          // Image reference the worker runs
	Parent        string         `json:"parent"`         // Coordinator instance that owns the worker
	ProjectPath   string         `json:"project_path"`   // Host project directory bound into the worker
	CreatedAt     time.Time      `json:"created_at"`     // Claim time
	Limits        ResourceLimits `json:"limits"`         // Resource limit snapshot at claim time
	TenantVolumes []string       `json:"tenant_volumes"` // Tenant-scoped volume names mounted into the worker
}
