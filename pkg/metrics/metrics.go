package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steward_workers_total",
			Help: "Current number of workers by status",
		},
		[]string{"status"},
	)

	WorkersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_workers_created_total",
			Help: "Total number of warm workers created",
		},
	)

	WorkersClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_workers_claimed_total",
			Help: "Total number of warm workers claimed by tenants",
		},
	)

	WorkersEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_workers_evicted_total",
			Help: "Total number of workers evicted as idle",
		},
	)

	ClaimLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steward_claim_latency_seconds",
			Help:    "Time taken to claim a warm worker in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClaimMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_claim_misses_total",
			Help: "Claims that found no warm worker available",
		},
	)

	MaintenanceErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_pool_maintenance_errors_total",
			Help: "Failed steps during pool maintenance ticks",
		},
	)

	// Resilience metrics
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steward_breaker_state",
			Help: "Circuit breaker state per service (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"service"},
	)

	RuntimeRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_runtime_retries_total",
			Help: "Retried container runtime operations",
		},
	)

	// Coordinator metrics
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steward_reconcile_duration_seconds",
			Help:    "Registry reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciledRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_reconciled_records_total",
			Help: "Registry records dropped because their container disappeared",
		},
	)

	// Backing service metrics
	ServiceHealthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_service_health_checks_total",
			Help: "Backing service health checks by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkersCreated)
	prometheus.MustRegister(WorkersClaimed)
	prometheus.MustRegister(WorkersEvicted)
	prometheus.MustRegister(ClaimLatency)
	prometheus.MustRegister(ClaimMisses)
	prometheus.MustRegister(MaintenanceErrors)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(RuntimeRetries)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ReconciledRecords)
	prometheus.MustRegister(ServiceHealthChecks)
}

// SetBreakerState records a breaker's state as a numeric gauge value
func SetBreakerState(service, state string) {
	var value float64
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	BreakerState.WithLabelValues(service).Set(value)
}

// SetWorkerCounts updates the per-status worker gauges in one call
func SetWorkerCounts(warm, busy int) {
	WorkersTotal.WithLabelValues("warm").Set(float64(warm))
	WorkersTotal.WithLabelValues("busy").Set(float64(busy))
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
