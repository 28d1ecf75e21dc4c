package provisioner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsMountPath is where a worker sees its secret files
const SecretsMountPath = "/run/steward/secrets"

// secretsDir is the host-side staging directory for one worker
func (p *Provisioner) secretsDir(name string) string {
	return filepath.Join(p.opts.DataDir, "secrets", name)
}

// stageSecrets writes each secret as a 0400 file in a 0700 per-worker
// directory and returns that directory, empty when there is nothing to
// stage. Secrets reach the worker only through this read-only mount,
// never through the environment.
func (p *Provisioner) stageSecrets(name string, secrets map[string][]byte) (string, error) {
	if len(secrets) == 0 {
		return "", nil
	}

	dir := p.secretsDir(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create secrets directory: %w", err)
	}

	for secretName, value := range secrets {
		if !validSecretName(secretName) {
			_ = p.cleanupSecrets(name)
			return "", fmt.Errorf("invalid secret name %q", secretName)
		}
		path := filepath.Join(dir, secretName)
		if err := os.WriteFile(path, value, 0o400); err != nil {
			// Rollback so a retry starts from a clean directory
			_ = p.cleanupSecrets(name)
			return "", fmt.Errorf("failed to write secret %s: %w", secretName, err)
		}
	}
	return dir, nil
}

// cleanupSecrets removes a worker's staging directory. Missing is
// success.
func (p *Provisioner) cleanupSecrets(name string) error {
	dir := p.secretsDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to cleanup secrets for %s: %w", name, err)
	}
	return nil
}

// validSecretName rejects names that would escape the staging directory
func validSecretName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}
