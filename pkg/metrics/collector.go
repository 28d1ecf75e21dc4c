package metrics

import (
	"time"

	"github.com/hellblazer/steward/pkg/types"
)

const collectPeriod = 15 * time.Second

// WorkerLister is the registry surface the collector polls
type WorkerLister interface {
	ListWorkersByStatus(status types.WorkerStatus) ([]*types.WorkerRecord, error)
}

// Collector keeps the worker gauges aligned with the registry. Pool
// operations push counts as they mutate; the collector re-reads the
// registry on a fixed period so gauges recover from out-of-band
// changes (CLI scaling, reconcile drops).
type Collector struct {
	store  WorkerLister
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store WorkerLister) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(collectPeriod)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	warm, err := c.store.ListWorkersByStatus(types.WorkerStatusWarm)
	if err != nil {
		return
	}
	busy, err := c.store.ListWorkersByStatus(types.WorkerStatusBusy)
	if err != nil {
		return
	}
	terminating, err := c.store.ListWorkersByStatus(types.WorkerStatusTerminating)
	if err != nil {
		return
	}

	SetWorkerCounts(len(warm), len(busy))
	WorkersTotal.WithLabelValues("terminating").Set(float64(len(terminating)))
}
