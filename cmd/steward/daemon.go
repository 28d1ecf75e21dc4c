package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellblazer/steward/pkg/coordinator"
	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the steward daemon in the foreground",
	Long: `Start the coordinator: open the registry, launch the vector store,
prefetch the worker image, and maintain the warm pool until interrupted.

The daemon runs in the foreground and shuts down cleanly on SIGINT or
SIGTERM. Workers are left running so sessions survive a restart.`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running steward daemon",
	Long: `Signal the daemon recorded in the pid marker with SIGTERM, wait for
it to exit, and escalate to SIGKILL after the grace period.`,
	RunE: runStop,
}

func init() {
	startCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides configuration)")
	startCmd.Flags().Bool("log-json", false, "Log JSON lines instead of console output (overrides configuration)")

	stopCmd.Flags().Duration("grace", 30*time.Second, "How long to wait before escalating to SIGKILL")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	log.Init(log.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	metrics.SetVersion(Version)

	coord, err := coordinator.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Run(ctx); err != nil {
		return fmt.Errorf("daemon exited: %v", err)
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	grace, _ := cmd.Flags().GetDuration("grace")

	runDir := cfg.RunDir()
	pid, err := coordinator.ReadPidMarker(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("steward daemon is not running")
			return nil
		}
		return fmt.Errorf("failed to read pid marker: %v", err)
	}
	if !coordinator.ProcessAlive(pid) {
		_ = os.Remove(coordinator.PidPath(runDir))
		fmt.Printf("Removed stale pid marker for dead pid %d\n", pid)
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find pid %d: %v", pid, err)
	}

	fmt.Printf("Stopping steward daemon (pid %d)...\n", pid)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal pid %d: %v", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !coordinator.ProcessAlive(pid) {
			fmt.Println("✓ Daemon stopped")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	fmt.Printf("Daemon did not exit within %s, sending SIGKILL\n", grace)
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill pid %d: %v", pid, err)
	}
	time.Sleep(500 * time.Millisecond)
	if coordinator.ProcessAlive(pid) {
		return fmt.Errorf("pid %d is still alive after SIGKILL", pid)
	}

	// A killed daemon never removed its own marker
	_ = os.Remove(coordinator.PidPath(runDir))
	fmt.Println("✓ Daemon killed")
	return nil
}
