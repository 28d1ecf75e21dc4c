package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/pool"
	"github.com/hellblazer/steward/pkg/provisioner"
	"github.com/hellblazer/steward/pkg/runtime"
	"github.com/hellblazer/steward/pkg/storage"
	"github.com/hellblazer/steward/pkg/types"
)

var scaleCmd = &cobra.Command{
	Use:   "scale N",
	Short: "Scale the warm pool to exactly N workers",
	Long: `Spawn or remove warm workers until exactly N are available. Busy
workers are never touched, and the target is clamped to pool.max_warm.

The registry takes an exclusive lock, so scale runs while the daemon is
stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runScale,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stopped workers, orphaned sessions, and stale locks",
	Long: `Sweep the state directory: stopped worker containers are removed,
registry records without containers are dropped, session files without
records are deleted, and stale spawn locks are reaped.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().Bool("dry-run", false, "Report what would be removed without removing it")
}

// sharedState is a one-shot handle on the daemon's state directory
type sharedState struct {
	store storage.Store
	rt    *runtime.DockerRuntime
	prov  *provisioner.Provisioner
	pool  *pool.Manager
}

func openSharedState(cfg *config.Config) (*sharedState, error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("registry is locked; stop the steward daemon first")
		}
		return nil, fmt.Errorf("failed to open registry: %v", err)
	}

	rt, err := runtime.NewDockerRuntime()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to container runtime: %v", err)
	}

	prov, err := provisioner.New(rt, provisioner.Options{
		DataDir:       cfg.DataDir,
		AllowedImages: cfg.Worker.AllowedImages,
		ProjectRoots:  cfg.Worker.ProjectRoots,
		ParentAlias:   cfg.Service.ParentAlias,
	})
	if err != nil {
		_ = rt.Close()
		_ = store.Close()
		return nil, err
	}

	mgr, err := pool.NewManager(store, prov, rt, nil, pool.Config{
		Pool:     cfg.PoolConfig(),
		Defaults: pool.WorkerDefaults{Image: cfg.Worker.Image, Limits: cfg.WorkerLimits()},
		RunDir:   cfg.RunDir(),
	})
	if err != nil {
		_ = rt.Close()
		_ = store.Close()
		return nil, err
	}

	return &sharedState{store: store, rt: rt, prov: prov, pool: mgr}, nil
}

func (s *sharedState) close() {
	_ = s.rt.Close()
	_ = s.store.Close()
}

func runScale(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[0])
	if err != nil || target < 0 {
		return fmt.Errorf("target must be a non-negative integer, got %q", args[0])
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	state, err := openSharedState(cfg)
	if err != nil {
		return err
	}
	defer state.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scaling warm pool to %d...\n", target)
	if err := state.pool.ScalePool(ctx, target); err != nil {
		return fmt.Errorf("scale failed: %v", err)
	}

	warm, err := state.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Warm pool at %d workers\n", len(warm))
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	state, err := openSharedState(cfg)
	if err != nil {
		return err
	}
	defer state.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live, err := state.rt.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %v", err)
	}
	allByID := make(map[string]struct{}, len(live))
	for _, info := range live {
		allByID[info.ID] = struct{}{}
	}

	// Stopped containers, with their records and sessions. Claimed
	// containers are renamed at claim time; the label keeps the
	// registry name.
	removed := 0
	for _, info := range live {
		if info.State == "running" {
			continue
		}
		name := info.Labels[runtime.LabelWorker]
		if name == "" {
			name = info.Name
		}
		if dryRun {
			fmt.Printf("Would remove stopped worker %s (%s)\n", name, info.State)
			continue
		}
		if err := state.pool.RemoveWorker(ctx, name); err != nil {
			fmt.Printf("⚠ Failed to remove %s: %v\n", name, err)
			continue
		}
		delete(allByID, info.ID)
		removed++
	}

	// Registry records whose containers vanished
	records, err := state.store.ListWorkers()
	if err != nil {
		return err
	}
	dropped := 0
	for _, record := range records {
		if _, ok := allByID[record.ContainerID]; ok {
			continue
		}
		if dryRun {
			fmt.Printf("Would drop record for vanished worker %s\n", record.Name)
			continue
		}
		if err := state.store.DeleteWorker(record.Name); err != nil {
			fmt.Printf("⚠ Failed to drop record for %s: %v\n", record.Name, err)
			continue
		}
		_ = state.prov.DeleteSession(record.Name)
		dropped++
	}

	// Session files without a surviving record
	records, err = state.store.ListWorkers()
	if err != nil {
		return err
	}
	survivors := make(map[string]struct{}, len(records))
	for _, record := range records {
		survivors[record.Name] = struct{}{}
	}
	sessions, err := state.prov.ListSessions()
	if err != nil {
		return err
	}
	orphans := 0
	for _, session := range sessions {
		if _, ok := survivors[session.Worker]; ok {
			continue
		}
		if dryRun {
			fmt.Printf("Would remove orphaned session %s\n", session.Worker)
			continue
		}
		if err := state.prov.DeleteSession(session.Worker); err != nil {
			fmt.Printf("⚠ Failed to remove session %s: %v\n", session.Worker, err)
			continue
		}
		orphans++
	}

	if dryRun {
		fmt.Println("Dry run complete. No changes made.")
		return nil
	}

	swept, err := state.prov.SweepStaleLocks()
	if err != nil {
		fmt.Printf("⚠ Lock sweep failed: %v\n", err)
	}

	fmt.Printf("✓ Cleanup complete: %d workers removed, %d records dropped, %d sessions removed, %d locks reaped\n",
		removed, dropped, orphans, swept)
	return nil
}
