/*
Package storage provides BoltDB-backed persistence for Steward's worker registry.

The storage package implements the Store interface using BoltDB as the
underlying database, providing ACID transactions for worker records. Records
are serialized as JSON and keyed by worker name, which is the unique identity
shared with the container runtime.

# Architecture

Steward uses BoltDB (bbolt) for embedded, transactional storage with zero
external services:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/steward.db               │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ workers   (worker name)    │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management                │          │
	│  │  - Read: db.View() - Concurrent reads       │          │
	│  │  - Write: db.Update() - Serialized writes   │          │
	│  │  - Rollback: Automatic on error             │          │
	│  │  - Commit: Automatic on success + fsync     │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# The Atomic Claim

ClaimOldestWarm is the load-bearing operation: candidate selection
(oldest CreatedAt among warm workers) and the busy transition commit in
one write transaction. Bolt serializes writers, so two concurrent
claimers cannot both win the same worker; the loser sees the next
candidate or types.ErrNoWarmWorker. Bolt's file lock extends the same
guarantee across processes sharing the data directory (a CLI scale
command racing the daemon, for example).

# Record Identity

CreateWorker refuses to overwrite an existing name: a worker name is
never reused while any record with that name exists. UpdateWorker is
the inverse and requires the record to exist. DeleteWorker is
idempotent, matching the remove-if-present semantics of the runtime
boundary.

# Usage

	store, err := storage.NewBoltStore("/var/lib/steward")
	if err != nil {
		return err
	}
	defer store.Close()

	record := &types.WorkerRecord{
		Name:      "steward-worker-1a2b3c4d",
		Status:    types.WorkerStatusWarm,
		CreatedAt: time.Now(),
	}
	if err := store.CreateWorker(record); err != nil {
		return err
	}

	claimed, err := store.ClaimOldestWarm(tenantHash, projectPath, time.Now())
	if errors.Is(err, types.ErrNoWarmWorker) {
		// cold-start fallback
	}

# Integration Points

  - pkg/provisioner inserts records after successful spawns
  - pkg/pool claims, updates, and deletes records
  - pkg/coordinator reconciles records against live runtime state
  - pkg/metrics samples record counts for the worker gauges

# See Also

  - pkg/types for the WorkerRecord schema
  - https://github.com/etcd-io/bbolt
*/
package storage
