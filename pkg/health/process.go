package health

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ProcessChecker verifies a supervised process is alive through its PID
// marker file. Signal 0 probes the process without affecting it.
type ProcessChecker struct {
	// PIDFile is the marker file holding the process ID
	PIDFile string
}

// NewProcessChecker creates a checker for the process recorded in
// pidFile
func NewProcessChecker(pidFile string) *ProcessChecker {
	return &ProcessChecker{PIDFile: pidFile}
}

// Check reads the marker and signals the process
func (p *ProcessChecker) Check(ctx context.Context) Result {
	start := time.Now()

	data, err := os.ReadFile(p.PIDFile)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("pid marker unreadable: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("pid marker corrupt: %q", strings.TrimSpace(string(data))),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	proc, err := os.FindProcess(pid)
	if err == nil {
		err = proc.Signal(syscall.Signal(0))
	}
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("process %d not running: %v", pid, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("process %d running", pid),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe mechanism
func (p *ProcessChecker) Type() CheckType {
	return CheckTypeProcess
}
