package coordinator

import (
	"context"
	"errors"

	"github.com/hellblazer/steward/pkg/metrics"
	"github.com/hellblazer/steward/pkg/provisioner"
	"github.com/hellblazer/steward/pkg/types"
)

// reconcile aligns the registry with live runtime state: records whose
// containers vanished are dropped, session files without a record are
// removed, and busy workers missing session metadata are flagged.
// Workers themselves are never touched here.
func (c *Coordinator) reconcile(ctx context.Context) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

	live, err := c.rt.ListWorkers(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reconcile skipped, runtime listing failed")
		metrics.UpdateComponent("runtime", false, err.Error())
		return
	}
	metrics.UpdateComponent("runtime", true, "connected")

	liveByID := make(map[string]struct{}, len(live))
	for _, info := range live {
		liveByID[info.ID] = struct{}{}
	}

	records, err := c.store.ListWorkers()
	if err != nil {
		c.logger.Warn().Err(err).Msg("reconcile skipped, registry listing failed")
		return
	}

	keep := make(map[string]struct{}, len(records))
	dropped := 0
	for _, record := range records {
		if _, ok := liveByID[record.ContainerID]; !ok {
			c.logger.Warn().
				Str("worker", record.Name).
				Str("container_id", shortID(record.ContainerID)).
				Msg("container vanished, dropping record")
			if err := c.store.DeleteWorker(record.Name); err != nil {
				c.logger.Warn().Err(err).Str("worker", record.Name).Msg("failed to drop record")
				continue
			}
			if err := c.sessions.DeleteSession(record.Name); err != nil {
				c.logger.Warn().Err(err).Str("worker", record.Name).Msg("session cleanup failed")
			}
			dropped++
			continue
		}
		keep[record.Name] = struct{}{}

		if record.Status == types.WorkerStatusBusy {
			if _, err := c.sessions.ReadSession(record.Name); errors.Is(err, provisioner.ErrSessionNotFound) {
				c.logger.Warn().Str("worker", record.Name).Msg("busy worker has no session metadata")
			}
		}
	}
	if dropped > 0 {
		metrics.ReconciledRecords.Add(float64(dropped))
		c.logger.Info().Int("dropped", dropped).Msg("dropped records for vanished containers")
	}

	sessions, err := c.sessions.ListSessions()
	if err != nil {
		c.logger.Warn().Err(err).Msg("reconcile session listing failed")
		return
	}
	orphans := 0
	for _, session := range sessions {
		if _, ok := keep[session.Worker]; ok {
			continue
		}
		if err := c.sessions.DeleteSession(session.Worker); err != nil {
			c.logger.Warn().Err(err).Str("worker", session.Worker).Msg("failed to remove orphaned session file")
			continue
		}
		orphans++
	}
	if orphans > 0 {
		c.logger.Info().Int("removed", orphans).Msg("removed orphaned session files")
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
