package provisioner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hellblazer/steward/pkg/types"
)

func TestValidateImage(t *testing.T) {
	allowed := []string{
		"registry/worker:v3.0.0",
		"registry/worker-python:v3.0.0",
		"registry.example.com:5000/worker:v1.2.3",
		"registry/worker@sha256:8a9b0c1d2e3f8a9b0c1d2e3f8a9b0c1d2e3f8a9b0c1d2e3f8a9b0c1d2e3f0000",
	}

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"allow-listed pinned tag", "registry/worker:v3.0.0", false},
		{"allow-listed variant", "registry/worker-python:v3.0.0", false},
		{"allow-listed with registry port", "registry.example.com:5000/worker:v1.2.3", false},
		{"allow-listed digest", "registry/worker@sha256:8a9b0c1d2e3f8a9b0c1d2e3f8a9b0c1d2e3f8a9b0c1d2e3f8a9b0c1d2e3f0000", false},
		{"mutable latest", "registry/worker:latest", true},
		{"mutable main", "registry/worker:main", true},
		{"mutable dev", "registry/worker:dev", true},
		{"bare repository", "registry/worker", true},
		{"registry port but no tag", "registry.example.com:5000/worker", true},
		{"pinned but not listed", "registry/worker:v9.9.9", true},
		{"different repo same tag", "registry/other:v3.0.0", true},
		{"empty reference", "", true},
		{"empty tag", "registry/worker:", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.ref, allowed)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImage(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("ValidateImage(%q) error not a configuration error: %v", tt.ref, err)
			}
		})
	}
}

func TestValidateImageEmptyAllowList(t *testing.T) {
	if err := ValidateImage("registry/worker:v3.0.0", nil); err == nil {
		t.Error("expected rejection with empty allow-list")
	}
}

func TestValidateProjectPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	project := filepath.Join(root, "project")
	if err := os.MkdirAll(project, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(root, "notadir.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Symlink inside the root pointing outside it
	escape := filepath.Join(root, "escape")
	if err := os.Symlink(outside, escape); err != nil {
		t.Fatal(err)
	}

	roots := []string{root}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"inside root", project, false},
		{"root itself", root, false},
		{"traversal sequence", filepath.Join(root, "..", filepath.Base(root), "project"), true},
		{"outside root", outside, true},
		{"symlink escape", escape, true},
		{"missing path", filepath.Join(root, "absent"), true},
		{"not a directory", file, true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProjectPath(tt.path, roots)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProjectPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("ValidateProjectPath(%q) error not a configuration error: %v", tt.path, err)
			}
			if err == nil && got == "" {
				t.Error("ValidateProjectPath returned empty canonical path")
			}
		})
	}
}

func TestValidateProjectPathPrefixBoundary(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "projects")
	sibling := filepath.Join(base, "projects-evil")
	for _, dir := range []string{root, sibling} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	// A sibling sharing the root's name as a string prefix must not pass
	if _, err := ValidateProjectPath(sibling, []string{root}); err == nil {
		t.Error("expected rejection of sibling directory outside the root")
	}
}
