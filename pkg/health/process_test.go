package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writePidFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.pid")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	return path
}

func TestProcessCheckerLiveProcess(t *testing.T) {
	path := writePidFile(t, fmt.Sprintf("%d\n", os.Getpid()))

	result := NewProcessChecker(path).Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy for own pid: %s", result.Message)
	}
}

func TestProcessCheckerDeadProcess(t *testing.T) {
	// PID far above any default pid_max
	path := writePidFile(t, "999999999")

	result := NewProcessChecker(path).Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for dead pid")
	}
}

func TestProcessCheckerMissingMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.pid")

	result := NewProcessChecker(path).Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for missing marker")
	}
}

func TestProcessCheckerCorruptMarker(t *testing.T) {
	path := writePidFile(t, "not-a-pid")

	result := NewProcessChecker(path).Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for corrupt marker")
	}
}

func TestProcessCheckerType(t *testing.T) {
	if got := NewProcessChecker("/run/steward/qdrant.pid").Type(); got != CheckTypeProcess {
		t.Errorf("expected type %s, got %s", CheckTypeProcess, got)
	}
}
