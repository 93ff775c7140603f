// Package health runs periodic processor health probes: one independent
// loop per downstream processor, polling on a fixed cadence and writing the
// result into the processor's shared State.
package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rinha2025/payment-gateway/internal/processorclient"
)

// Monitor owns the probe loop for a single processor client.
type Monitor struct {
	client   *processorclient.Client
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// New builds a Monitor for the given client.
func New(client *processorclient.Client, interval, timeout time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		client:   client,
		interval: interval,
		timeout:  timeout,
		log:      log.With().Str("processor", client.Kind.String()).Logger(),
	}
}

// Run blocks until ctx is cancelled, probing on the fixed cadence. The
// downstream processor rate-limits this endpoint to once every five
// seconds, so callers must not race multiple Runs for the same client.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	healthy, minLatencyMs, err := m.client.Probe(ctx, m.timeout)
	if err != nil {
		m.client.State.MarkProbeFailed()
		m.log.Warn().Err(err).Msg("health probe failed")
		return
	}
	m.client.State.ApplyProbe(healthy, minLatencyMs)
	m.log.Debug().
		Bool("healthy", healthy).
		Int("min_latency_ms", minLatencyMs).
		Msg("health probe ok")
}
