package ledger

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha2025/payment-gateway/internal/model"
)

func TestShardSelectorToleratesMissingPeer(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(dir, "app1.db")
	missingPeer := filepath.Join(dir, "does-not-exist", "app2.db")

	selector, err := NewShardSelector(own, missingPeer, zerolog.Nop())
	require.NoError(t, err)
	defer selector.Close()

	assert.NotNil(t, selector.Own())
	assert.Nil(t, selector.Peer())
}

func TestShardSelectorOpensBothWhenPresent(t *testing.T) {
	dir := t.TempDir()
	ownPath := filepath.Join(dir, "app1.db")
	peerPath := filepath.Join(dir, "app2.db")

	peer, err := Open(peerPath, false)
	require.NoError(t, err)
	peer.Close()

	selector, err := NewShardSelector(ownPath, peerPath, zerolog.Nop())
	require.NoError(t, err)
	defer selector.Close()

	assert.NotNil(t, selector.Own())
	assert.NotNil(t, selector.Peer())
}

func TestShardSelectorToleratesMissingOwn(t *testing.T) {
	dir := t.TempDir()
	missingOwn := filepath.Join(dir, "does-not-exist", "app1.db")
	peerPath := filepath.Join(dir, "app2.db")

	peer, err := Open(peerPath, false)
	require.NoError(t, err)
	peer.Close()

	selector, err := NewShardSelector(missingOwn, peerPath, zerolog.Nop())
	require.NoError(t, err)
	defer selector.Close()

	require.NotNil(t, selector.Peer())
	require.NotNil(t, selector.Own())
	rec := model.PaymentRecord{CorrelationID: "x", Amount: 1, RequestedAtMs: 1, ProcessorUsed: model.Default}
	assert.ErrorIs(t, selector.Own().Insert(rec), ErrClosed)
}

func TestShardSelectorFailsOnlyWhenBothShardsAreUnavailable(t *testing.T) {
	dir := t.TempDir()
	missingOwn := filepath.Join(dir, "nope-1", "app1.db")
	missingPeer := filepath.Join(dir, "nope-2", "app2.db")

	_, err := NewShardSelector(missingOwn, missingPeer, zerolog.Nop())
	assert.Error(t, err)
}
