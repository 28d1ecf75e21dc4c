package pool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// pidMarkerName is the pool supervisor's marker file under RunDir
const pidMarkerName = "pool.pid"

// Start launches the maintenance loop: one immediate tick, then one per
// CheckInterval until the context is cancelled or Stop is called. The
// pid marker lets external tooling see the supervisor; a marker left by
// a dead process is reaped here.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("pool manager already running")
	}

	if err := m.writePidMarker(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)

	m.logger.Info().
		Int("min_warm", m.cfg.Pool.MinWarm).
		Int("max_warm", m.cfg.Pool.MaxWarm).
		Dur("check_interval", m.cfg.Pool.CheckInterval).
		Msg("pool manager started")
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	if err := m.MaintainPool(ctx); err != nil && ctx.Err() == nil {
		m.logger.Error().Err(err).Msg("maintenance tick failed")
	}

	ticker := time.NewTicker(m.cfg.Pool.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.MaintainPool(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error().Err(err).Msg("maintenance tick failed")
			}
		}
	}
}

// Stop cancels the maintenance loop and waits for it, giving up after a
// grace window. Stopping a stopped manager is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		m.logger.Warn().Msg("pool loop did not stop within grace period")
	}

	m.removePidMarker()
	m.logger.Info().Msg("pool manager stopped")
	return nil
}

// IsRunning reports whether a pool supervisor is alive. A pid marker
// whose process is dead is corrupt state: it is removed and reported as
// not running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return true
	}

	pid, err := readPidMarker(m.pidPath())
	if err != nil {
		return false
	}
	if !markerProcessAlive(pid) {
		m.logger.Warn().Int("pid", pid).Msg("removing stale pool pid marker")
		_ = os.Remove(m.pidPath())
		return false
	}
	return true
}

func (m *Manager) pidPath() string {
	return filepath.Join(m.cfg.RunDir, pidMarkerName)
}

func (m *Manager) writePidMarker() error {
	if m.cfg.RunDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.RunDir, 0o700); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	if pid, err := readPidMarker(m.pidPath()); err == nil {
		if markerProcessAlive(pid) && pid != os.Getpid() {
			return fmt.Errorf("pool supervisor already running with pid %d", pid)
		}
		m.logger.Warn().Int("pid", pid).Msg("reaping stale pool pid marker")
	}

	data := []byte(strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(m.pidPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write pool pid marker: %w", err)
	}
	return nil
}

func (m *Manager) removePidMarker() {
	if m.cfg.RunDir == "" {
		return
	}
	_ = os.Remove(m.pidPath())
}

func readPidMarker(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("unreadable pid marker %s", path)
	}
	return pid, nil
}

func markerProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
