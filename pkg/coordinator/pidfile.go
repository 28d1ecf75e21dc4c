package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hellblazer/steward/pkg/types"
)

const pidMarkerName = "steward.pid"

// PidPath returns the coordinator pid marker location under runDir
func PidPath(runDir string) string {
	return filepath.Join(runDir, pidMarkerName)
}

// ReadPidMarker returns the pid recorded in the coordinator marker.
// A marker that does not parse is CorruptState.
func ReadPidMarker(runDir string) (int, error) {
	data, err := os.ReadFile(PidPath(runDir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed pid marker %s", types.ErrCorruptState, PidPath(runDir))
	}
	return pid, nil
}

// ProcessAlive reports whether pid names a live process
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func writePidMarker(runDir string) error {
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(PidPath(runDir), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600)
}

func removePidMarker(runDir string) {
	// Best effort; the next startup self-heals stale markers
	_ = os.Remove(PidPath(runDir))
}
