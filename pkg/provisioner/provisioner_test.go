package provisioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellblazer/steward/pkg/runtime"
	"github.com/hellblazer/steward/pkg/types"
)

// fakeRuntime implements Runtime for tests
type fakeRuntime struct {
	mu sync.Mutex

	imagePresent bool
	pulled       []string

	failCreates int
	failStarts  int

	createCalls int
	startCalls  int
	removed     []string
	volumes     map[string]map[string]string
}

func (f *fakeRuntime) ImagePresent(ctx context.Context, ref string) (bool, error) {
	return f.imagePresent, nil
}

func (f *fakeRuntime) PullImage(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulled = append(f.pulled, ref)
	return nil
}

func (f *fakeRuntime) CreateWorker(ctx context.Context, spec runtime.WorkerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreates > 0 {
		f.failCreates--
		return "", fmt.Errorf("%w: daemon unavailable", types.ErrTransientRuntime)
	}
	return fmt.Sprintf("ctr-%d", f.createCalls), nil
}

func (f *fakeRuntime) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.failStarts > 0 {
		f.failStarts--
		return fmt.Errorf("%w: start failed", types.ErrTransientRuntime)
	}
	return nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeRuntime) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.volumes == nil {
		f.volumes = make(map[string]map[string]string)
	}
	f.volumes[name] = labels
	return nil
}

func newProvisionerWith(t *testing.T, rt *fakeRuntime) *Provisioner {
	t.Helper()
	p, err := New(rt, Options{
		DataDir:       t.TempDir(),
		AllowedImages: []string{"registry/worker:v3.0.0"},
		ProjectRoots:  []string{"/home", "/srv"},
		SpawnAttempts: 3,
		SpawnDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return p
}

func TestSpawnWarmWorker(t *testing.T) {
	rt := &fakeRuntime{imagePresent: true}
	p := newProvisionerWith(t, rt)

	record, err := p.Spawn(context.Background(), LaunchPlan{
		Name:  "steward-worker-11112222",
		Image: "registry/worker:v3.0.0",
		Cmd:   []string{"sleep", "infinity"},
		Limits: types.ResourceLimits{
			MemoryBytes: 2 << 30,
			CPUs:        2.0,
			PidsLimit:   256,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.WorkerStatusWarm, record.Status)
	assert.Equal(t, "ctr-1", record.ContainerID)
	assert.Empty(t, record.TenantHash)
	assert.Nil(t, record.ClaimedAt)
	assert.Equal(t, 1, rt.createCalls)
	assert.Equal(t, 1, rt.startCalls)
	assert.Empty(t, rt.pulled, "present image must not be pulled")

	session, err := p.ReadSession("steward-worker-11112222")
	require.NoError(t, err)
	assert.Equal(t, "registry/worker:v3.0.0", session.Image)
	assert.Empty(t, session.ProjectPath)
}

func TestSpawnClaimedWorkerWithSecretsAndTenant(t *testing.T) {
	rt := &fakeRuntime{imagePresent: true}
	p := newProvisionerWith(t, rt)
	p.opts.ProjectRoots = []string{t.TempDir()}

	project := filepath.Join(p.opts.ProjectRoots[0], "app")
	require.NoError(t, os.MkdirAll(project, 0o755))

	hash := TenantHash("alice@example.com")
	record, err := p.Spawn(context.Background(), LaunchPlan{
		Name:        "steward-worker-33334444",
		Image:       "registry/worker:v3.0.0",
		TenantHash:  hash,
		ProjectPath: project,
		Secrets: map[string][]byte{
			"service-token": []byte("deadbeef"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.WorkerStatusBusy, record.Status)
	assert.Equal(t, hash, record.TenantHash)
	assert.NotNil(t, record.ClaimedAt)

	// Tenant volumes were ensured
	assert.Contains(t, rt.volumes, TenantVolumeName(hash, VolumeKindConfig))
	assert.Contains(t, rt.volumes, TenantVolumeName(hash, VolumeKindCache))

	// Secret staged 0400 and mounted read-only
	secretPath := filepath.Join(p.secretsDir("steward-worker-33334444"), "service-token")
	info, err := os.Stat(secretPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o400), info.Mode().Perm())

	var secretBind *types.VolumeBinding
	for i := range record.Volumes {
		if record.Volumes[i].Target == SecretsMountPath {
			secretBind = &record.Volumes[i]
		}
	}
	require.NotNil(t, secretBind, "secrets directory must be mounted")
	assert.True(t, secretBind.ReadOnly)

	session, err := p.ReadSession("steward-worker-33334444")
	require.NoError(t, err)
	assert.Len(t, session.TenantVolumes, 2)
}

func TestSpawnPullsMissingImage(t *testing.T) {
	rt := &fakeRuntime{imagePresent: false}
	p := newProvisionerWith(t, rt)

	_, err := p.Spawn(context.Background(), LaunchPlan{
		Name:  "steward-worker-55556666",
		Image: "registry/worker:v3.0.0",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"registry/worker:v3.0.0"}, rt.pulled)
}

func TestSpawnRetriesTransientFailures(t *testing.T) {
	rt := &fakeRuntime{imagePresent: true, failCreates: 2}
	p := newProvisionerWith(t, rt)

	record, err := p.Spawn(context.Background(), LaunchPlan{
		Name:  "steward-worker-77778888",
		Image: "registry/worker:v3.0.0",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rt.createCalls, "two failures then success")
	assert.Equal(t, "ctr-3", record.ContainerID)
}

func TestSpawnCompensatesOnFinalFailure(t *testing.T) {
	rt := &fakeRuntime{imagePresent: true, failStarts: 10}
	p := newProvisionerWith(t, rt)

	_, err := p.Spawn(context.Background(), LaunchPlan{
		Name:  "steward-worker-9999aaaa",
		Image: "registry/worker:v3.0.0",
		Secrets: map[string][]byte{
			"service-token": []byte("deadbeef"),
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTransientRuntime))

	// Each attempt created then removed its partial container
	assert.Equal(t, 3, rt.createCalls)
	assert.Len(t, rt.removed, 3)

	// Staged secrets and session metadata are gone
	_, statErr := os.Stat(p.secretsDir("steward-worker-9999aaaa"))
	assert.True(t, os.IsNotExist(statErr), "secrets must be cleaned up")
	_, readErr := p.ReadSession("steward-worker-9999aaaa")
	assert.True(t, errors.Is(readErr, ErrSessionNotFound))
}

func TestSpawnRejectsBeforeSideEffects(t *testing.T) {
	rt := &fakeRuntime{imagePresent: true}
	p := newProvisionerWith(t, rt)

	_, err := p.Spawn(context.Background(), LaunchPlan{
		Name:  "steward-worker-bbbbcccc",
		Image: "registry/worker:latest",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	assert.Zero(t, rt.createCalls, "rejected plan must not touch the runtime")
	assert.Zero(t, len(rt.volumes))
}

func TestTeardownIdempotent(t *testing.T) {
	rt := &fakeRuntime{imagePresent: true}
	p := newProvisionerWith(t, rt)

	record, err := p.Spawn(context.Background(), LaunchPlan{
		Name:  "steward-worker-ddddeeee",
		Image: "registry/worker:v3.0.0",
	})
	require.NoError(t, err)

	require.NoError(t, p.Teardown(context.Background(), record.Name, record.ContainerID))
	require.NoError(t, p.Teardown(context.Background(), record.Name, record.ContainerID),
		"second teardown must succeed")

	_, err = p.ReadSession(record.Name)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestListSessionsOldestFirst(t *testing.T) {
	p := newProvisionerWith(t, &fakeRuntime{imagePresent: true})

	base := time.Now().UTC()
	for i, name := range []string{"w-c", "w-a", "w-b"} {
		require.NoError(t, p.RecordSession(types.SessionRecord{
			Worker:    name,
			Image:     "registry/worker:v3.0.0",
			CreatedAt: base.Add(time.Duration(2-i) * time.Hour),
		}))
	}

	sessions, err := p.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "w-b", sessions[0].Worker)
	assert.Equal(t, "w-a", sessions[1].Worker)
	assert.Equal(t, "w-c", sessions[2].Worker)
}
