// Package dispatcher implements the single-consumer loop that drains the
// intake queue, selects a healthy processor in fixed preference order, and
// commits successes to the ledger.
package dispatcher

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rinha2025/payment-gateway/internal/ledger"
	"github.com/rinha2025/payment-gateway/internal/model"
	"github.com/rinha2025/payment-gateway/internal/processorclient"
	"github.com/rinha2025/payment-gateway/internal/queue"
)

// bothDownPoll is the idle poll interval while both processors are down.
const bothDownPoll = 10 * time.Millisecond

// Dispatcher is the single logical consumer of the intake queue. Preference
// order is always [default, fallback] — fallback is tried only once default
// has been attempted and failed or is unhealthy.
type Dispatcher struct {
	queue      *queue.Queue
	processors []*processorclient.Client // fixed preference order
	shards     *ledger.ShardSelector
	log        zerolog.Logger
}

// New builds a Dispatcher. processors must be supplied in preference order:
// [default, fallback].
func New(q *queue.Queue, processors []*processorclient.Client, shards *ledger.ShardSelector, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{queue: q, processors: processors, shards: shards, log: log}
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if d.allUnhealthy() {
			select {
			case <-time.After(bothDownPoll):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		req, ok := d.queue.Dequeue(ctx)
		if !ok {
			return nil
		}

		if !d.attempt(ctx, &req) {
			d.queue.Enqueue(req)
		}
	}
}

func (d *Dispatcher) allUnhealthy() bool {
	for _, p := range d.processors {
		if p.State.Healthy() {
			return false
		}
	}
	return true
}

// attempt tries each healthy processor in preference order. It returns true
// once a terminal success has been observed and handled (committed, or
// knowingly dropped after a ledger write failure) — the caller must not
// requeue in that case, since re-posting would double-count.
func (d *Dispatcher) attempt(ctx context.Context, req *model.PaymentRequest) bool {
	for _, p := range d.processors {
		if !p.State.Healthy() {
			continue
		}
		if d.sendAndRecord(ctx, p, req) {
			return true
		}
	}
	return false
}

// sendAndRecord sends one payment to p and, on a terminal success, commits
// it to the local shard.
func (d *Dispatcher) sendAndRecord(ctx context.Context, p *processorclient.Client, req *model.PaymentRequest) bool {
	traceID := uuid.NewString()
	log := d.log.With().Str("trace_id", traceID).Str("correlation_id", req.CorrelationID).Str("processor", p.Kind.String()).Logger()

	pace := time.Duration(p.State.MinLatencyMs()) * time.Millisecond
	if pace > 0 {
		select {
		case <-time.After(pace):
		case <-ctx.Done():
			return false
		}
	}

	req.RequestedAtMs = time.Now().UTC().UnixMilli()

	outcome, err := p.Send(ctx, *req)
	if outcome != processorclient.OutcomeSuccess {
		p.State.MarkUnhealthy()
		log.Warn().Err(err).Msg("processor send failed")
		return false
	}

	record := model.PaymentRecord{
		CorrelationID: req.CorrelationID,
		Amount:        req.Amount,
		RequestedAtMs: req.RequestedAtMs,
		ProcessorUsed: p.Kind,
	}

	commitErr := retry.Do(
		func() error { return d.shards.Own().Insert(record) },
		retry.Attempts(3),
		retry.Delay(20*time.Millisecond),
		retry.Context(ctx),
	)
	if commitErr != nil {
		// Processor already counted this payment; re-sending would
		// double-count. Accept the drop rather than risk a duplicate charge.
		log.Error().Err(commitErr).Msg("ledger commit failed after retries, dropping terminal payment")
	}
	return true
}
