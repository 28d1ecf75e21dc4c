package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hellblazer/steward/pkg/types"
)

var (
	bucketWorkers = []byte("workers")
)

// ErrWorkerNotFound is returned when a named record does not exist
var ErrWorkerNotFound = errors.New("worker not found")

// BoltStore implements Store using BoltDB. Bolt serializes writers at
// the file level, so record transitions such as the warm claim are
// atomic across goroutines and across processes sharing the data dir.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the registry database under
// dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "steward.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketWorkers); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketWorkers, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// CreateWorker inserts a new record, refusing to overwrite an existing
// name
func (s *BoltStore) CreateWorker(record *types.WorkerRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		if b.Get([]byte(record.Name)) != nil {
			return fmt.Errorf("worker name already in use: %s", record.Name)
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.Name), data)
	})
}

// GetWorker returns the record for name
func (s *BoltStore) GetWorker(name string) (*types.WorkerRecord, error) {
	var record types.WorkerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrWorkerNotFound, name)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListWorkers returns every record
func (s *BoltStore) ListWorkers() ([]*types.WorkerRecord, error) {
	var records []*types.WorkerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		return b.ForEach(func(k, v []byte) error {
			var record types.WorkerRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// ListWorkersByStatus returns records matching status
func (s *BoltStore) ListWorkersByStatus(status types.WorkerStatus) ([]*types.WorkerRecord, error) {
	records, err := s.ListWorkers()
	if err != nil {
		return nil, err
	}

	var filtered []*types.WorkerRecord
	for _, record := range records {
		if record.Status == status {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

// UpdateWorker replaces an existing record
func (s *BoltStore) UpdateWorker(record *types.WorkerRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		if b.Get([]byte(record.Name)) == nil {
			return fmt.Errorf("%w: %s", ErrWorkerNotFound, record.Name)
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.Name), data)
	})
}

// DeleteWorker removes the record for name; absent records are a no-op
func (s *BoltStore) DeleteWorker(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		return b.Delete([]byte(name))
	})
}

// ClaimOldestWarm selects and claims the oldest warm worker in a single
// write transaction. The selection and the busy transition commit
// together, so a concurrent claimer either sees this worker already
// busy or wins a different one.
func (s *BoltStore) ClaimOldestWarm(tenantHash, projectPath string, claimedAt time.Time) (*types.WorkerRecord, error) {
	var claimed *types.WorkerRecord
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)

		var oldest *types.WorkerRecord
		err := b.ForEach(func(k, v []byte) error {
			var record types.WorkerRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if record.Status != types.WorkerStatusWarm {
				return nil
			}
			if oldest == nil || record.CreatedAt.Before(oldest.CreatedAt) {
				oldest = &record
			}
			return nil
		})
		if err != nil {
			return err
		}
		if oldest == nil {
			return types.ErrNoWarmWorker
		}

		oldest.Status = types.WorkerStatusBusy
		oldest.TenantHash = tenantHash
		oldest.ProjectPath = projectPath
		oldest.ClaimedAt = &claimedAt

		data, err := json.Marshal(oldest)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(oldest.Name), data); err != nil {
			return err
		}

		claimed = oldest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
