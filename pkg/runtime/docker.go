package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/types"
)

// Labels applied to every container and volume Steward manages. The
// managed label is the listing filter; the worker label carries the
// registry name even after a claim renames the container.
const (
	LabelManaged = "steward.managed"
	LabelWorker  = "steward.worker"
	LabelRole    = "steward.role"
	LabelVolume  = "steward.volume"
)

// ErrContainerNotFound is returned by Inspect when the container does
// not exist. Stop and Remove treat the same condition as success.
var ErrContainerNotFound = errors.New("container not found")

// WorkerSpec describes a container launch
type WorkerSpec struct {
	Name       string
	Image      string
	Cmd        []string
	Env        []string
	WorkingDir string
	Labels     map[string]string
	Limits     types.ResourceLimits
	Volumes    []types.VolumeBinding
	AutoRemove bool
	ExtraHosts []string
}

// WorkerState is the typed inspection result for one container
type WorkerState struct {
	ID         string
	Name       string
	Image      string
	Running    bool
	Status     string
	StartedAt  time.Time
	AutoRemove bool
	Labels     map[string]string
}

// ContainerInfo is one entry from a filtered listing
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	State     string
	CreatedAt time.Time
	Labels    map[string]string
}

// DockerRuntime wraps the Docker Engine API client. It is the only
// component that talks to the runtime; everything above it operates on
// records and specs.
type DockerRuntime struct {
	cli    *client.Client
	logger zerolog.Logger
}

// NewDockerRuntime creates a client from the environment (DOCKER_HOST
// and friends) with API version negotiation
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerRuntime{
		cli:    cli,
		logger: log.WithComponent("runtime"),
	}, nil
}

// Close releases the client
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

// Ping verifies the daemon is reachable
func (r *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping docker daemon: %w", wrapTransient(err))
	}
	return nil
}

// ImagePresent reports whether the image exists locally
func (r *DockerRuntime) ImagePresent(ctx context.Context, ref string) (bool, error) {
	_, _, err := r.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image %s: %w", ref, wrapTransient(err))
	}
	return true, nil
}

// PullImage pulls ref and drains the progress stream. Cancelling ctx
// abandons the pull.
func (r *DockerRuntime) PullImage(ctx context.Context, ref string) error {
	r.logger.Info().Str("image", ref).Msg("pulling image")

	reader, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, wrapTransient(err))
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to read pull progress for %s: %w", ref, wrapTransient(err))
	}

	r.logger.Info().Str("image", ref).Msg("image pulled")
	return nil
}

// CreateWorker creates (without starting) a container from spec and
// returns its ID
func (r *DockerRuntime) CreateWorker(ctx context.Context, spec WorkerSpec) (string, error) {
	labels := map[string]string{
		LabelManaged: "true",
		LabelWorker:  spec.Name,
		LabelRole:    "worker",
	}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	config := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		Env:        spec.Env,
		WorkingDir: spec.WorkingDir,
		Labels:     labels,
	}

	hostConfig := &container.HostConfig{
		Binds: bindStrings(spec.Volumes),
		Resources: container.Resources{
			Memory:   spec.Limits.MemoryBytes,
			NanoCPUs: int64(spec.Limits.CPUs * 1e9),
		},
		AutoRemove: spec.AutoRemove,
		ExtraHosts: spec.ExtraHosts,
	}
	if spec.Limits.PidsLimit > 0 {
		pids := spec.Limits.PidsLimit
		hostConfig.Resources.PidsLimit = &pids
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", spec.Name, wrapTransient(err))
	}

	return resp.ID, nil
}

// StartContainer starts a created container
func (r *DockerRuntime) StartContainer(ctx context.Context, id string) error {
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", shortID(id), wrapTransient(err))
	}
	return nil
}

// StopContainer stops a container, allowing timeout for the entrypoint
// to exit before the daemon escalates to SIGKILL. Stopping a missing
// container is success.
func (r *DockerRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	err := r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container %s: %w", shortID(id), wrapTransient(err))
	}
	return nil
}

// RemoveContainer removes a container. Removing a missing container is
// success.
func (r *DockerRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", shortID(id), wrapTransient(err))
	}
	return nil
}

// RenameContainer renames a container. The daemon enforces name
// uniqueness, which makes the rename a claim-safe transition.
func (r *DockerRuntime) RenameContainer(ctx context.Context, id, newName string) error {
	if err := r.cli.ContainerRename(ctx, id, newName); err != nil {
		return fmt.Errorf("failed to rename container %s: %w", shortID(id), wrapTransient(err))
	}
	return nil
}

// Inspect returns the typed state of a container by name or ID
func (r *DockerRuntime) Inspect(ctx context.Context, nameOrID string) (*WorkerState, error) {
	inspect, err := r.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, nameOrID)
		}
		return nil, fmt.Errorf("failed to inspect container %s: %w", nameOrID, wrapTransient(err))
	}

	state := &WorkerState{
		ID:     inspect.ID,
		Name:   strings.TrimPrefix(inspect.Name, "/"),
		Labels: inspect.Config.Labels,
	}
	if inspect.Config != nil {
		state.Image = inspect.Config.Image
	}
	if inspect.HostConfig != nil {
		state.AutoRemove = inspect.HostConfig.AutoRemove
	}
	if inspect.State != nil {
		state.Running = inspect.State.Running
		state.Status = inspect.State.Status
		if started, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			state.StartedAt = started
		}
	}

	return state, nil
}

// IsRunning reports whether the container exists and is running
func (r *DockerRuntime) IsRunning(ctx context.Context, nameOrID string) (bool, error) {
	state, err := r.Inspect(ctx, nameOrID)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			return false, nil
		}
		return false, err
	}
	return state.Running, nil
}

// ListWorkers returns every container carrying the managed label,
// including stopped ones
func (r *DockerRuntime) ListWorkers(ctx context.Context) ([]ContainerInfo, error) {
	opts := container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelManaged+"=true")),
	}

	containers, err := r.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", wrapTransient(err))
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		infos = append(infos, ContainerInfo{
			ID:        c.ID,
			Name:      name,
			Image:     c.Image,
			State:     string(c.State),
			CreatedAt: time.Unix(c.Created, 0),
			Labels:    c.Labels,
		})
	}
	return infos, nil
}

// Processes returns the command column of the container's process
// table. Used by the busy-worker liveness heuristic.
func (r *DockerRuntime) Processes(ctx context.Context, id string) ([]string, error) {
	top, err := r.cli.ContainerTop(ctx, id, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, shortID(id))
		}
		return nil, fmt.Errorf("failed to read process table of %s: %w", shortID(id), wrapTransient(err))
	}

	cmdIndex := -1
	for i, title := range top.Titles {
		if title == "CMD" || title == "COMMAND" {
			cmdIndex = i
			break
		}
	}
	if cmdIndex < 0 {
		return nil, nil
	}

	commands := make([]string, 0, len(top.Processes))
	for _, proc := range top.Processes {
		if cmdIndex < len(proc) {
			commands = append(commands, proc[cmdIndex])
		}
	}
	return commands, nil
}

// EnsureVolume creates a named volume if it does not already exist.
// The daemon makes creation idempotent by name, so a second call for
// the same tenant is a no-op.
func (r *DockerRuntime) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	merged := map[string]string{LabelManaged: "true"}
	for k, v := range labels {
		merged[k] = v
	}

	_, err := r.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Labels: merged,
	})
	if err != nil {
		return fmt.Errorf("failed to create volume %s: %w", name, wrapTransient(err))
	}
	return nil
}

// RemoveVolume removes a named volume. Removing a missing volume is
// success.
func (r *DockerRuntime) RemoveVolume(ctx context.Context, name string, force bool) error {
	err := r.cli.VolumeRemove(ctx, name, force)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove volume %s: %w", name, wrapTransient(err))
	}
	return nil
}

// bindStrings converts volume bindings to docker bind specs
func bindStrings(volumes []types.VolumeBinding) []string {
	binds := make([]string, 0, len(volumes))
	for _, v := range volumes {
		mode := "rw"
		if v.ReadOnly {
			mode = "ro"
		}
		binds = append(binds, fmt.Sprintf("%s:%s:%s", v.Source, v.Target, mode))
	}
	return binds
}

// wrapTransient marks a runtime failure as retryable
func wrapTransient(err error) error {
	return fmt.Errorf("%w: %v", types.ErrTransientRuntime, err)
}

// shortID truncates a container ID for log lines
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
