package provisioner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// lockGrace bounds how long a lock without a readable pid file is
// trusted. Covers the window between mkdir and the pid write.
const lockGrace = time.Minute

func (p *Provisioner) locksDir() string {
	return filepath.Join(p.opts.DataDir, "locks")
}

// acquireLock takes the allocation lock for a worker name. The lock is
// a directory, so acquisition is a single atomic mkdir that works
// across processes. A lock whose recorded pid is dead is corrupt state:
// it is reaped and acquisition retried once.
func (p *Provisioner) acquireLock(name string) (func(), error) {
	if err := os.MkdirAll(p.locksDir(), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create locks directory: %w", err)
	}

	lockPath := filepath.Join(p.locksDir(), name+".lock")
	for attempt := 0; attempt < 2; attempt++ {
		err := os.Mkdir(lockPath, 0o700)
		if err == nil {
			pidData := []byte(strconv.Itoa(os.Getpid()))
			if err := os.WriteFile(filepath.Join(lockPath, "pid"), pidData, 0o600); err != nil {
				_ = os.RemoveAll(lockPath)
				return nil, fmt.Errorf("failed to record lock owner for %s: %w", name, err)
			}
			return func() { _ = os.RemoveAll(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire allocation lock for %s: %w", name, err)
		}

		if !lockIsStale(lockPath) {
			return nil, fmt.Errorf("allocation lock for %s is held", name)
		}
		p.logger.Warn().Str("worker", name).Msg("reaping stale allocation lock")
		_ = os.RemoveAll(lockPath)
	}
	return nil, fmt.Errorf("failed to acquire allocation lock for %s", name)
}

// lockIsStale reports whether a held lock belongs to a dead process
func lockIsStale(lockPath string) bool {
	data, err := os.ReadFile(filepath.Join(lockPath, "pid"))
	if err != nil {
		info, statErr := os.Stat(lockPath)
		return statErr == nil && time.Since(info.ModTime()) > lockGrace
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	return !processAlive(pid)
}

// processAlive probes a pid with signal 0
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// SweepStaleLocks removes every lock whose owner is dead. Called during
// startup and by the cleanup command.
func (p *Provisioner) SweepStaleLocks() (int, error) {
	entries, err := os.ReadDir(p.locksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read locks directory: %w", err)
	}

	reaped := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		lockPath := filepath.Join(p.locksDir(), entry.Name())
		if lockIsStale(lockPath) {
			p.logger.Warn().Str("lock", entry.Name()).Msg("reaping stale allocation lock")
			_ = os.RemoveAll(lockPath)
			reaped++
		}
	}
	return reaped, nil
}
