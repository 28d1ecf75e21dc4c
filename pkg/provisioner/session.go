package provisioner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hellblazer/steward/pkg/types"
)

// ErrSessionNotFound is returned when no session file exists for a
// worker name
var ErrSessionNotFound = errors.New("session not found")

func (p *Provisioner) sessionsDir() string {
	return filepath.Join(p.opts.DataDir, "sessions")
}

func (p *Provisioner) sessionPath(name string) string {
	return filepath.Join(p.sessionsDir(), name+".json")
}

// RecordSession writes the session metadata file for a worker: 0600 in
// a 0700 directory. This is the only write path; listing tools and the
// reconciler only read.
func (p *Provisioner) RecordSession(rec types.SessionRecord) error {
	if rec.Worker == "" {
		return fmt.Errorf("%w: session record has no worker name", types.ErrConfiguration)
	}

	if err := os.MkdirAll(p.sessionsDir(), 0o700); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := os.WriteFile(p.sessionPath(rec.Worker), data, 0o600); err != nil {
		return fmt.Errorf("failed to write session record for %s: %w", rec.Worker, err)
	}
	return nil
}

// ReadSession loads one session record by worker name
func (p *Provisioner) ReadSession(name string) (*types.SessionRecord, error) {
	data, err := os.ReadFile(p.sessionPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
		}
		return nil, fmt.Errorf("failed to read session record for %s: %w", name, err)
	}

	var rec types.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: session record for %s is unreadable: %v", types.ErrCorruptState, name, err)
	}
	return &rec, nil
}

// ListSessions returns every readable session record, oldest first.
// Unreadable files are skipped with a warning so one corrupt record
// cannot hide the rest.
func (p *Provisioner) ListSessions() ([]types.SessionRecord, error) {
	entries, err := os.ReadDir(p.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	records := make([]types.SessionRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		rec, err := p.ReadSession(name)
		if err != nil {
			p.logger.Warn().Err(err).Str("worker", name).Msg("skipping unreadable session record")
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// DeleteSession removes a worker's session file. Missing is success.
func (p *Provisioner) DeleteSession(name string) error {
	err := os.Remove(p.sessionPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session record for %s: %w", name, err)
	}
	return nil
}
