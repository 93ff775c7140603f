package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha2025/payment-gateway/internal/ledger"
	"github.com/rinha2025/payment-gateway/internal/model"
	"github.com/rinha2025/payment-gateway/internal/processorclient"
	"github.com/rinha2025/payment-gateway/internal/queue"
)

func newShardsForTest(t *testing.T) *ledger.ShardSelector {
	t.Helper()
	dir := t.TempDir()
	selector, err := ledger.NewShardSelector(filepath.Join(dir, "own.db"), filepath.Join(dir, "peer.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { selector.Close() })
	return selector
}

func fixedStatusServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

// TestHappyPathDefault covers the common case: default always 200, fallback
// always 500, three payments should all land in the default bucket.
func TestHappyPathDefault(t *testing.T) {
	defaultSrv := fixedStatusServer(http.StatusOK)
	defer defaultSrv.Close()
	fallbackSrv := fixedStatusServer(http.StatusInternalServerError)
	defer fallbackSrv.Close()

	defaultClient := processorclient.New(model.Default, defaultSrv.URL)
	fallbackClient := processorclient.New(model.Fallback, fallbackSrv.URL)
	shards := newShardsForTest(t)
	q := queue.New()
	d := New(q, []*processorclient.Client{defaultClient, fallbackClient}, shards, zerolog.Nop())

	amounts := []float64{100.00, 50.50, 0.01}
	for i, amt := range amounts {
		q.Enqueue(model.PaymentRequest{CorrelationID: string(rune('a' + i)), Amount: amt})
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	require.Eventually(t, func() bool {
		records, _ := shards.Own().Scan(0, time.Now().UnixMilli()+1000)
		return len(records) == 3
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	records, err := shards.Own().Scan(0, time.Now().UnixMilli()+1000)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var total float64
	for _, r := range records {
		assert.Equal(t, model.Default, r.ProcessorUsed)
		total += r.Amount
	}
	assert.InDelta(t, 150.51, total, 0.001)
}

// TestTerminalRejectIsRecorded verifies a 422 from the default processor is
// recorded exactly like a 2xx.
func TestTerminalRejectIsRecorded(t *testing.T) {
	srv := fixedStatusServer(http.StatusUnprocessableEntity)
	defer srv.Close()
	fallbackSrv := fixedStatusServer(http.StatusInternalServerError)
	defer fallbackSrv.Close()

	defaultClient := processorclient.New(model.Default, srv.URL)
	fallbackClient := processorclient.New(model.Fallback, fallbackSrv.URL)
	shards := newShardsForTest(t)
	q := queue.New()
	d := New(q, []*processorclient.Client{defaultClient, fallbackClient}, shards, zerolog.Nop())

	q.Enqueue(model.PaymentRequest{CorrelationID: "c_bad", Amount: 25})

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	require.Eventually(t, func() bool {
		records, _ := shards.Own().Scan(0, time.Now().UnixMilli()+1000)
		return len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
}

// TestBothUnhealthyDoesNotDrainQueue verifies that while both processors are
// unhealthy the dispatcher must not dequeue.
func TestBothUnhealthyDoesNotDrainQueue(t *testing.T) {
	defaultClient := processorclient.New(model.Default, "http://127.0.0.1:1")
	fallbackClient := processorclient.New(model.Fallback, "http://127.0.0.1:1")
	defaultClient.State.MarkUnhealthy()
	fallbackClient.State.MarkUnhealthy()

	shards := newShardsForTest(t)
	q := queue.New()
	d := New(q, []*processorclient.Client{defaultClient, fallbackClient}, shards, zerolog.Nop())

	for i := 0; i < 10; i++ {
		q.Enqueue(model.PaymentRequest{CorrelationID: string(rune('a' + i)), Amount: 1})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	assert.Equal(t, 10, q.Len())

	records, err := shards.Own().Scan(0, time.Now().UnixMilli()+1000)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestFailedSendRequeuesAndMarksUnhealthy verifies that if every attempt
// fails, the request is still in the queue afterward, and each attempted
// processor is marked unhealthy.
func TestFailedSendRequeuesAndMarksUnhealthy(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	defaultClient := processorclient.New(model.Default, srv.URL)
	fallbackClient := processorclient.New(model.Fallback, srv.URL)
	shards := newShardsForTest(t)
	q := queue.New()
	d := New(q, []*processorclient.Client{defaultClient, fallbackClient}, shards, zerolog.Nop())

	q.Enqueue(model.PaymentRequest{CorrelationID: "will-fail", Amount: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&attempts)), 2)
	assert.False(t, defaultClient.State.Healthy())
	assert.False(t, fallbackClient.State.Healthy())
	assert.GreaterOrEqual(t, q.Len(), 1)
}
