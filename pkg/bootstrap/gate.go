package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/hellblazer/steward/pkg/health"
	"github.com/hellblazer/steward/pkg/metrics"
	"github.com/hellblazer/steward/pkg/resilience"
	"github.com/hellblazer/steward/pkg/types"
)

const (
	gateService = "vector-store"
	gateTick    = time.Second
	gateBudget  = 30
)

// gateBreakerConfig trips faster than the default policy; during
// startup three straight failures already mean the service is not
// coming up on its own schedule
var gateBreakerConfig = resilience.BreakerConfig{
	FailureThreshold: 3,
	HalfOpenWait:     5 * time.Second,
}

// AwaitReady blocks until the vector store passes both probes: the
// authenticated heartbeat endpoint, then the query port's gRPC health
// service. Heartbeat probes route through the vector-store circuit
// breaker. The budget is fixed; exhaustion returns a
// HealthCheckTimeout the coordinator treats as fatal.
func (b *Bootstrapper) AwaitReady(ctx context.Context, breakers *resilience.Registry) error {
	breaker := breakers.Configure(gateService, gateBreakerConfig)

	heartbeat := health.NewHTTPChecker(b.HeartbeatURL()).WithTimeout(b.gateTick)
	confirm := health.NewGRPCChecker(b.GRPCTarget()).WithTimeout(b.gateTick)
	if pem := b.CertPEM(); pem != nil {
		var err error
		if heartbeat, err = heartbeat.WithRootCAs(pem); err != nil {
			return fmt.Errorf("failed to trust service certificate: %w", err)
		}
		if confirm, err = confirm.WithRootCAs(pem); err != nil {
			return fmt.Errorf("failed to trust service certificate: %w", err)
		}
	}
	if token := b.Token(); token != "" {
		heartbeat.WithAPIKey(token)
	}

	status := health.NewStatus()
	policy := health.Config{Interval: b.gateTick, Timeout: b.gateTick, Retries: gateBreakerConfig.FailureThreshold}

	ticker := time.NewTicker(b.gateTick)
	defer ticker.Stop()

	for tick := 1; tick <= b.gateBudget; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := breaker.Execute(func() error {
			result := heartbeat.Check(ctx)
			status.Update(result, policy)
			if !result.Healthy {
				return fmt.Errorf("heartbeat: %s", result.Message)
			}
			return nil
		})
		if err != nil {
			b.logger.Debug().Err(err).Int("tick", tick).Msg("vector store heartbeat not ready")
			continue
		}

		if result := confirm.Check(ctx); !result.Healthy {
			b.logger.Debug().Str("detail", result.Message).Int("tick", tick).Msg("query port not ready")
			continue
		}

		metrics.UpdateComponent(gateService, true, "serving")
		b.logger.Info().Int("ticks", tick).Msg("vector store ready")
		return nil
	}

	metrics.UpdateComponent(gateService, false, "health gate timed out")
	b.logger.Error().
		Int("consecutive_failures", status.ConsecutiveFailures).
		Str("breaker", string(breaker.State())).
		Msg("vector store failed its health gate")
	return fmt.Errorf("%w: vector store not ready after %d probes", types.ErrHealthCheckTimeout, b.gateBudget)
}
