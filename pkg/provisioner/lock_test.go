package provisioner

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	p, err := New(&fakeRuntime{imagePresent: true}, Options{
		DataDir:       t.TempDir(),
		AllowedImages: []string{"registry/worker:v3.0.0"},
		SpawnAttempts: 3,
		SpawnDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return p
}

func TestAcquireLockExclusive(t *testing.T) {
	p := newTestProvisioner(t)

	release, err := p.acquireLock("steward-worker-aaaa1111")
	require.NoError(t, err)

	_, err = p.acquireLock("steward-worker-aaaa1111")
	assert.Error(t, err, "second acquisition of a held lock must fail")

	release()

	release2, err := p.acquireLock("steward-worker-aaaa1111")
	require.NoError(t, err, "lock must be reacquirable after release")
	release2()
}

func TestAcquireLockReapsStale(t *testing.T) {
	p := newTestProvisioner(t)

	// Simulate a lock left behind by a crashed process
	lockPath := filepath.Join(p.locksDir(), "steward-worker-bbbb2222.lock")
	require.NoError(t, os.MkdirAll(lockPath, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(lockPath, "pid"), []byte("not-a-pid"), 0o600))

	release, err := p.acquireLock("steward-worker-bbbb2222")
	require.NoError(t, err, "stale lock must be reaped and reacquired")
	release()
}

func TestSweepStaleLocks(t *testing.T) {
	p := newTestProvisioner(t)
	require.NoError(t, os.MkdirAll(p.locksDir(), 0o700))

	// Live lock: owned by this process
	live := filepath.Join(p.locksDir(), "live.lock")
	require.NoError(t, os.MkdirAll(live, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(live, "pid"), []byte(strconv.Itoa(os.Getpid())), 0o600))

	// Stale lock: unparsable owner
	stale := filepath.Join(p.locksDir(), "stale.lock")
	require.NoError(t, os.MkdirAll(stale, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "pid"), []byte("bogus"), 0o600))

	reaped, err := p.SweepStaleLocks()
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	_, err = os.Stat(live)
	assert.NoError(t, err, "live lock must survive the sweep")
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale lock must be removed")
}

func TestSweepStaleLocksEmptyDir(t *testing.T) {
	p := newTestProvisioner(t)
	reaped, err := p.SweepStaleLocks()
	require.NoError(t, err)
	assert.Zero(t, reaped)
}
