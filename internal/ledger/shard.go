package ledger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ShardSelector exposes the two-replica partitioning scheme: this replica
// writes to Own() and may additionally read Peer()'s shard for summary
// queries. Either shard can independently fail to open; only a failure of
// both is fatal.
type ShardSelector struct {
	own  *BoltLedger
	peer *BoltLedger
}

// NewShardSelector attempts to open both shard files independently. A
// failure on either side is logged and tolerated: if only the own shard
// fails, the replica still starts and can serve summary reads off the peer
// shard, while writes surface as an error from Insert rather than blocking
// startup. If only the peer shard fails, summaries degrade to "own shard
// only". NewShardSelector returns an error, and the process should exit
// non-zero, only when both shards fail to open.
func NewShardSelector(ownPath, peerPath string, log zerolog.Logger) (*ShardSelector, error) {
	own, ownErr := Open(ownPath, false)
	if ownErr != nil {
		log.Warn().Err(ownErr).Str("own_path", ownPath).Msg("own shard unavailable, this replica cannot record payments but may still serve reads")
	}

	peer, peerErr := Open(peerPath, true)
	if peerErr != nil {
		log.Warn().Err(peerErr).Str("peer_path", peerPath).Msg("peer shard unavailable, summaries will only cover this replica's shard")
	}

	if ownErr != nil && peerErr != nil {
		return nil, fmt.Errorf("ledger: both shards unavailable: own: %v, peer: %v", ownErr, peerErr)
	}

	return &ShardSelector{own: own, peer: peer}, nil
}

// Own returns this replica's write-here shard. It is safe to call even when
// the own shard failed to open: BoltLedger's methods check for a nil
// receiver and return ErrClosed, so callers can call Insert/Scan/Close
// directly without a nil check on Own() itself.
func (s *ShardSelector) Own() Ledger { return s.own }

// Peer returns the read-peer shard, or a literal nil if it could not be
// opened. Unlike Own, callers compare this result against nil directly
// (summary aggregation, the peer-reachability check), so this must not
// return a nil *BoltLedger boxed in a non-nil Ledger interface.
func (s *ShardSelector) Peer() Ledger {
	if s.peer == nil {
		return nil
	}
	return s.peer
}

// OwnAvailable reports whether the own shard opened successfully. Unlike
// Own(), which deliberately returns a nil-safe but non-nil Ledger even on
// failure, this gives callers (readiness checks) a real nil-pointer test.
func (s *ShardSelector) OwnAvailable() bool { return s.own != nil }

// Close releases both shard handles.
func (s *ShardSelector) Close() error {
	var err error
	if s.own != nil {
		err = s.own.Close()
	}
	if s.peer != nil {
		if peerErr := s.peer.Close(); peerErr != nil && err == nil {
			err = peerErr
		}
	}
	return err
}
