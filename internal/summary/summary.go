// Package summary implements range-scoped aggregation over both ledger
// shards.
package summary

import (
	"errors"
	"sync"

	"github.com/rinha2025/payment-gateway/internal/ledger"
	"github.com/rinha2025/payment-gateway/internal/model"
)

// Aggregate reads the own and peer shards in parallel, concatenates the
// streams and groups by processor. It always returns a fully-populated
// response, even when a shard is empty or the peer is unavailable, and the
// result is independent of the order the two shards are read in.
func Aggregate(shards *ledger.ShardSelector, fromMs, toMs int64) (model.SummaryResponse, error) {
	var (
		wg             sync.WaitGroup
		ownRecords     []model.PaymentRecord
		peerRecords    []model.PaymentRecord
		ownErr, peerErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		ownRecords, ownErr = shards.Own().Scan(fromMs, toMs)
	}()

	if peer := shards.Peer(); peer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			peerRecords, peerErr = peer.Scan(fromMs, toMs)
		}()
	}

	wg.Wait()

	if ownErr != nil {
		if !errors.Is(ownErr, ledger.ErrClosed) {
			return model.SummaryResponse{}, ownErr
		}
		// The own shard failed to open; answer from the peer shard alone.
		ownRecords = nil
	}
	if peerErr != nil {
		// Peer shard read failures degrade to "own shard only" rather than
		// failing the whole summary.
		peerRecords = nil
	}

	var resp model.SummaryResponse
	for _, rec := range ownRecords {
		resp.Add(rec.ProcessorUsed, rec.Amount)
	}
	for _, rec := range peerRecords {
		resp.Add(rec.ProcessorUsed, rec.Amount)
	}
	return resp, nil
}
