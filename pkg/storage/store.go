package storage

import (
	"time"

	"github.com/hellblazer/steward/pkg/types"
)

// Store defines the interface for the worker registry. Implemented by
// the BoltDB-backed store; tests substitute an in-memory fake.
type Store interface {
	// CreateWorker inserts a new record. Fails if a record with the
	// same name already exists: names are never reused while a record
	// is present.
	CreateWorker(record *types.WorkerRecord) error

	// GetWorker returns the record for name, or an error wrapping
	// ErrWorkerNotFound
	GetWorker(name string) (*types.WorkerRecord, error)

	// ListWorkers returns every record
	ListWorkers() ([]*types.WorkerRecord, error)

	// ListWorkersByStatus returns records matching status
	ListWorkersByStatus(status types.WorkerStatus) ([]*types.WorkerRecord, error)

	// UpdateWorker replaces an existing record. Fails if the record
	// does not exist.
	UpdateWorker(record *types.WorkerRecord) error

	// DeleteWorker removes the record for name. Deleting an absent
	// record is a no-op.
	DeleteWorker(name string) error

	// ClaimOldestWarm atomically selects the warm worker with the
	// oldest CreatedAt, binds the tenant hash and project path, and
	// marks it busy, all in one transaction. Returns the claimed
	// record, or types.ErrNoWarmWorker when no warm worker exists.
	// Two concurrent claimers never receive the same worker.
	ClaimOldestWarm(tenantHash, projectPath string, claimedAt time.Time) (*types.WorkerRecord, error)

	// Close releases the underlying database
	Close() error
}
