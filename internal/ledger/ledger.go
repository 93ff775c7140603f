// Package ledger implements the append-only store of successfully recorded
// payments on top of go.etcd.io/bbolt, a single embedded file per shard.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/rinha2025/payment-gateway/internal/model"
)

var (
	paymentsBucket = []byte("payments")
	byTimeBucket   = []byte("payments_by_time")

	// ErrClosed is returned by operations on a shard that failed to open;
	// such a failure is logged and tolerated rather than fatal.
	ErrClosed = errors.New("ledger: shard unavailable")
)

// Ledger is the storage contract: idempotent insert and a time-ranged scan
// over (processor_used, amount) pairs.
type Ledger interface {
	Insert(record model.PaymentRecord) error
	Scan(fromMs, toMs int64) ([]model.PaymentRecord, error)
	Close() error
}

// BoltLedger is the default Ledger implementation, one bbolt file per
// shard.
type BoltLedger struct {
	db *bbolt.DB
}

// Open creates or opens a shard file. readOnly is used for the peer shard,
// which this replica never writes to.
func Open(path string, readOnly bool) (*BoltLedger, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if !readOnly {
		if err := db.Update(func(tx *bbolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists(paymentsBucket); err != nil {
				return err
			}
			_, err := tx.CreateBucketIfNotExists(byTimeBucket)
			return err
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: init schema %s: %w", path, err)
		}
	}
	return &BoltLedger{db: db}, nil
}

// Insert writes a PaymentRecord. A primary-key conflict (the correlation id
// was already committed) is treated as success.
func (l *BoltLedger) Insert(record model.PaymentRecord) error {
	if l == nil || l.db == nil {
		return ErrClosed
	}
	key := []byte(record.CorrelationID)
	return l.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(paymentsBucket)
		if bucket.Get(key) != nil {
			return nil // idempotent: already committed
		}
		if err := bucket.Put(key, encodeRecord(record)); err != nil {
			return err
		}
		return tx.Bucket(byTimeBucket).Put(timeIndexKey(record.RequestedAtMs, key), key)
	})
}

// Scan returns every record with RequestedAtMs in [fromMs, toMs], inclusive
// on both ends.
func (l *BoltLedger) Scan(fromMs, toMs int64) ([]model.PaymentRecord, error) {
	if l == nil || l.db == nil {
		return nil, ErrClosed
	}
	var records []model.PaymentRecord
	err := l.db.View(func(tx *bbolt.Tx) error {
		payments := tx.Bucket(paymentsBucket)
		index := tx.Bucket(byTimeBucket)
		cursor := index.Cursor()

		seekKey := timeIndexKey(fromMs, nil)
		for k, v := cursor.Seek(seekKey); k != nil; k, v = cursor.Next() {
			ms := int64(binary.BigEndian.Uint64(k[:8]))
			if ms > toMs {
				break
			}
			raw := payments.Get(v)
			if raw == nil {
				continue
			}
			rec, err := decodeRecord(v, raw)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Close releases the underlying bbolt handle.
func (l *BoltLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// timeIndexKey builds the secondary-index key: an 8-byte big-endian
// millisecond timestamp followed by the correlation id, so a bbolt cursor
// walks entries in timestamp order.
func timeIndexKey(ms int64, correlationID []byte) []byte {
	key := make([]byte, 8+len(correlationID))
	binary.BigEndian.PutUint64(key[:8], uint64(ms))
	copy(key[8:], correlationID)
	return key
}

// encodeRecord packs amount (as cents), requested_at_ms, and processor into
// a fixed 17-byte value.
func encodeRecord(record model.PaymentRecord) []byte {
	buf := make([]byte, 17)
	binary.BigEndian.PutUint64(buf[0:8], uint64(amountToCents(record.Amount)))
	binary.BigEndian.PutUint64(buf[8:16], uint64(record.RequestedAtMs))
	buf[16] = byte(record.ProcessorUsed)
	return buf
}

func decodeRecord(correlationID, raw []byte) (model.PaymentRecord, error) {
	if len(raw) != 17 {
		return model.PaymentRecord{}, fmt.Errorf("ledger: corrupt record for %q (len=%d)", correlationID, len(raw))
	}
	cents := int64(binary.BigEndian.Uint64(raw[0:8]))
	ms := int64(binary.BigEndian.Uint64(raw[8:16]))
	processor := model.ProcessorKind(raw[16])
	return model.PaymentRecord{
		CorrelationID: string(correlationID),
		Amount:        centsToAmount(cents),
		RequestedAtMs: ms,
		ProcessorUsed: processor,
	}, nil
}

func amountToCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

func centsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
