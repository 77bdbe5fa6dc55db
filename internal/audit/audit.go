// SPDX-License-Identifier: MIT

// Package audit archives finished inspection results in an embedded
// badger store so operators can pull up recent runs per product. Writes
// are best-effort: a failed archive write never fails the inspection
// that produced it.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/visualaoi/aoid/internal/inspect"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
)

// DefaultRetention is how long archived results stay readable before
// badger reclaims them.
const DefaultRetention = 7 * 24 * time.Hour

const keyPrefix = "insp:"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("audit archive closed")

// Record is one archived inspection.
type Record struct {
	RecordedAt time.Time        `json:"recorded_at"`
	Response   inspect.Response `json:"response"`
}

// Archive is the badger-backed result store.
type Archive struct {
	db  *badger.DB
	ttl time.Duration

	now func() time.Time
}

// Open creates or reopens the archive at path. A non-positive retention
// falls back to DefaultRetention.
func Open(path string, retention time.Duration) (*Archive, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit archive: %w", err)
	}
	return &Archive{db: db, ttl: retention, now: time.Now}, nil
}

// Close flushes and closes the underlying store.
func (a *Archive) Close() error { return a.db.Close() }

// Put archives one finished inspection under its product.
func (a *Archive) Put(ctx context.Context, resp *inspect.Response) error {
	if a.db.IsClosed() {
		return ErrClosed
	}
	rec := Record{RecordedAt: a.now(), Response: *resp}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	key := recordKey(resp.ProductName, rec.RecordedAt, resp.SessionID)
	err = a.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf).WithTTL(a.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Recent returns the newest archived results for a product, newest
// first. limit caps the result count; non-positive means 20.
func (a *Archive) Recent(ctx context.Context, product string, limit int) ([]Record, error) {
	if a.db.IsClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	prefix := []byte(keyPrefix + product + ":")

	var out []Record
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the last key of the prefix.
		seek := append(append([]byte(nil), prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				logger := log.WithComponent("audit")
				logger.Warn().Err(err).
					Str("key", string(it.Item().Key())).
					Msg("skipping undecodable audit record")
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Hook adapts the archive into an inspection result observer. Failures
// are logged and counted, never propagated.
func (a *Archive) Hook() inspect.ResultHook {
	return func(ctx context.Context, resp *inspect.Response) {
		if err := a.Put(ctx, resp); err != nil {
			metrics.IncAuditWriteError()
			logger := log.WithComponentFromContext(ctx, "audit")
			logger.Warn().Err(err).
				Str(log.FieldProduct, resp.ProductName).
				Str(log.FieldSessionID, resp.SessionID).
				Msg("archiving inspection result failed")
		}
	}
}

// recordKey orders records chronologically per product. The fixed-width
// nanosecond timestamp makes lexicographic order equal time order.
func recordKey(product string, at time.Time, sessionID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", keyPrefix, product, at.UnixNano(), sessionID))
}
