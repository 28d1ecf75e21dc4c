package provisioner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hellblazer/steward/pkg/types"
)

// mutableTags are tag names that move between pushes. A reference using
// one of them can silently change content, so they are rejected even
// when the full reference appears in the allow-list.
var mutableTags = map[string]bool{
	"latest":  true,
	"main":    true,
	"master":  true,
	"dev":     true,
	"edge":    true,
	"nightly": true,
}

// ValidateImage accepts ref only when it is version-pinned and appears
// byte-exact in the allow-list. Anything else fails closed.
func ValidateImage(ref string, allowed []string) error {
	if ref == "" {
		return fmt.Errorf("%w: image reference is empty", types.ErrConfiguration)
	}

	tag, pinned := imageTag(ref)
	if !pinned {
		return fmt.Errorf("%w: image %s is not version-pinned", types.ErrConfiguration, ref)
	}
	if mutableTags[tag] {
		return fmt.Errorf("%w: image %s uses mutable tag %q", types.ErrConfiguration, ref, tag)
	}

	for _, candidate := range allowed {
		if candidate == ref {
			return nil
		}
	}
	return fmt.Errorf("%w: image %s is not in the allow-list", types.ErrConfiguration, ref)
}

// imageTag extracts the tag from a reference. Digest references count
// as pinned. A bare repository (no tag) does not.
func imageTag(ref string) (string, bool) {
	if i := strings.LastIndex(ref, "@"); i >= 0 {
		return ref[i+1:], ref[i+1:] != ""
	}

	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon < 0 || colon < slash {
		// Any colon before the last slash belongs to a registry port
		return "", false
	}
	tag := ref[colon+1:]
	return tag, tag != ""
}

// ValidateProjectPath canonicalizes path and requires the result to sit
// under one of the allowed roots. Traversal sequences, symlink escapes,
// and non-directories are rejected before anything is mounted. Returns
// the canonical path.
func ValidateProjectPath(path string, roots []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: project path is empty", types.ErrConfiguration)
	}

	for _, element := range strings.Split(filepath.ToSlash(path), "/") {
		if element == ".." {
			return "", fmt.Errorf("%w: project path %s contains a traversal sequence", types.ErrConfiguration, path)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve project path %s: %v", types.ErrConfiguration, path, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: project path %s does not resolve: %v", types.ErrConfiguration, path, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: project path %s is not accessible: %v", types.ErrConfiguration, canonical, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: project path %s is not a directory", types.ErrConfiguration, canonical)
	}

	for _, root := range roots {
		resolved := root
		if r, err := filepath.EvalSymlinks(root); err == nil {
			resolved = r
		}
		resolved = filepath.Clean(resolved)
		if canonical == resolved || strings.HasPrefix(canonical, resolved+string(filepath.Separator)) {
			return canonical, nil
		}
	}
	return "", fmt.Errorf("%w: project path %s is outside the allowed roots", types.ErrConfiguration, canonical)
}
