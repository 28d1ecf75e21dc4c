package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/storage"
	"github.com/hellblazer/steward/pkg/types"
)

func newReconcileCoordinator(t *testing.T) (*Coordinator, *fakeRuntime, *fakeSessions, storage.Store) {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rt := newFakeRuntime()
	sessions := newFakeSessions()
	c := &Coordinator{
		logger:   log.WithComponent("coordinator"),
		store:    store,
		rt:       rt,
		sessions: sessions,
	}
	return c, rt, sessions, store
}

func seedRecord(t *testing.T, store storage.Store, name, containerID string, status types.WorkerStatus) {
	t.Helper()

	record := &types.WorkerRecord{
		Name:        name,
		ContainerID: containerID,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if status == types.WorkerStatusBusy {
		claimed := time.Now().UTC()
		record.ClaimedAt = &claimed
	}
	require.NoError(t, store.CreateWorker(record))
}

// TestReconcileDropsVanishedRecords removes registry records whose
// containers no longer exist, along with their session files
func TestReconcileDropsVanishedRecords(t *testing.T) {
	c, rt, sessions, store := newReconcileCoordinator(t)

	rt.seed("container-live", "steward-worker-1")
	seedRecord(t, store, "steward-worker-1", "container-live", types.WorkerStatusWarm)
	seedRecord(t, store, "steward-session-2", "container-gone", types.WorkerStatusBusy)
	sessions.put(types.SessionRecord{Worker: "steward-session-2", Image: "img:v1"})

	c.reconcile(context.Background())

	records, err := store.ListWorkers()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "steward-worker-1", records[0].Name)
	assert.False(t, sessions.has("steward-session-2"))
}

// TestReconcileKeepsHealthyState leaves matching records and sessions
// alone
func TestReconcileKeepsHealthyState(t *testing.T) {
	c, rt, sessions, store := newReconcileCoordinator(t)

	rt.seed("container-a", "steward-worker-1")
	rt.seed("container-b", "steward-session-2")
	seedRecord(t, store, "steward-worker-1", "container-a", types.WorkerStatusWarm)
	seedRecord(t, store, "steward-session-2", "container-b", types.WorkerStatusBusy)
	sessions.put(types.SessionRecord{Worker: "steward-session-2", Image: "img:v1"})

	c.reconcile(context.Background())

	records, err := store.ListWorkers()
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.True(t, sessions.has("steward-session-2"))
}

// TestReconcileRemovesOrphanedSessions sweeps session files whose
// worker has no registry record
func TestReconcileRemovesOrphanedSessions(t *testing.T) {
	c, _, sessions, store := newReconcileCoordinator(t)

	sessions.put(types.SessionRecord{Worker: "steward-ghost", Image: "img:v1"})

	c.reconcile(context.Background())

	assert.False(t, sessions.has("steward-ghost"))
	records, err := store.ListWorkers()
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestReconcileToleratesBusyWithoutSession flags the condition but
// keeps the record: the container is alive and may still be in use
func TestReconcileToleratesBusyWithoutSession(t *testing.T) {
	c, rt, _, store := newReconcileCoordinator(t)

	rt.seed("container-a", "steward-session-1")
	seedRecord(t, store, "steward-session-1", "container-a", types.WorkerStatusBusy)

	c.reconcile(context.Background())

	record, err := store.GetWorker("steward-session-1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerStatusBusy, record.Status)
}

// TestReconcileSkipsWhenRuntimeUnavailable must not drop records on a
// listing failure; an unreachable daemon does not mean the containers
// are gone
func TestReconcileSkipsWhenRuntimeUnavailable(t *testing.T) {
	c, rt, sessions, store := newReconcileCoordinator(t)

	rt.listErr = errors.New("cannot connect to the container runtime")
	seedRecord(t, store, "steward-worker-1", "container-gone", types.WorkerStatusWarm)
	sessions.put(types.SessionRecord{Worker: "steward-worker-1", Image: "img:v1"})

	c.reconcile(context.Background())

	records, err := store.ListWorkers()
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.True(t, sessions.has("steward-worker-1"))
}
