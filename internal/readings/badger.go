// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package readings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/qbridge/qbridge/internal/metrics"
)

// BadgerStore persists readings in a badger key-value database. Keys are
// "r/<param>/<ts-nanos>" with the timestamp zero-padded so lexicographic
// order is time order.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// BadgerOption configures the badger backend.
type BadgerOption func(*BadgerStore)

// WithBadgerTTL expires readings after d. Zero keeps them forever.
func WithBadgerTTL(d time.Duration) BadgerOption {
	return func(s *BadgerStore) { s.ttl = d }
}

// OpenBadger opens the readings database at path.
func OpenBadger(path string, opts ...BadgerOption) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("readings: open badger: %w", err)
	}
	s := &BadgerStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func key(param string, ts time.Time) []byte {
	return fmt.Appendf(nil, "r/%s/%020d", param, ts.UnixNano())
}

func prefix(param string) []byte {
	return fmt.Appendf(nil, "r/%s/", param)
}

func (s *BadgerStore) Append(_ context.Context, r Reading) error {
	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(r.Param, r.TS), buf)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		metrics.IncReadingsError("badger")
		return fmt.Errorf("readings: append: %w", err)
	}
	metrics.IncReadingsWritten("badger")
	return nil
}

func (s *BadgerStore) Latest(_ context.Context, param string) (Reading, error) {
	var out Reading
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix(param)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible key for this parameter.
		it.Seek(append(prefix(param), 0xFF))
		if !it.ValidForPrefix(prefix(param)) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return Reading{}, err
	}
	if !found {
		return Reading{}, fmt.Errorf("%w: %s", ErrNoReadings, param)
	}
	return out, nil
}

func (s *BadgerStore) Range(_ context.Context, param string, from, to time.Time) ([]Reading, error) {
	var out []Reading
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix(param)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(key(param, from)); it.ValidForPrefix(prefix(param)); it.Next() {
			var r Reading
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}
			if r.TS.After(to) {
				break
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) Close() error { return s.db.Close() }
