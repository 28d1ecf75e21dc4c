package bootstrap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const tokenFileName = "token"

// generateToken produces a fresh 32-byte API token, hex encoded
func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// writeToken persists the token under dir, readable only by the owner.
// A leftover token from a previous run is replaced; every startup gets
// a fresh credential.
func writeToken(dir, token string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create service dir: %w", err)
	}

	path := filepath.Join(dir, tokenFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to replace previous token: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0o400); err != nil {
		return "", fmt.Errorf("failed to write token: %w", err)
	}
	return path, nil
}
