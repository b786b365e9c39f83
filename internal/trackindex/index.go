// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package trackindex provides the disk-backed grouping index mapping one
// track MBID to the list of duplicate submissions seen for it.
//
// The index is backed by BadgerDB so a full dump (tens of millions of
// submissions) never has to fit in process memory: groups are
// read-modify-written inside a batched write transaction. Keys are the
// 16-byte binary form of the MBID; values are JSON-encoded submission
// lists behind a pluggable compression codec.
//
// Ingestion and merge are sequential phases. Appends from concurrent
// extraction workers are serialized on one internal write transaction;
// Flush commits it, after which reads observe all prior writes.
package trackindex

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/harmonia/internal/extract"
	"github.com/tomtom215/harmonia/internal/logging"
)

// ErrNotFound is returned by MustGet for an absent or empty group.
// Plain Get returns an empty list instead.
var ErrNotFound = errors.New("trackindex: group not found")

// Options configures an Index.
type Options struct {
	// Dir is the BadgerDB directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger without disk persistence. For tests.
	InMemory bool

	// BatchSize is the number of appends committed per write
	// transaction. Defaults to 10000.
	BatchSize int

	// Compression stores groups zstd-compressed.
	Compression bool
}

// Index is the grouping index. Append is safe for concurrent producers;
// Replace/Get/Keys/Items are meant for the single-threaded merge phase
// after Flush.
type Index struct {
	db    *badger.DB
	codec Codec
	zstd  *zstdCodec

	mu        sync.Mutex
	txn       *badger.Txn
	pending   int
	batchSize int
	inMemory  bool

	logger zerolog.Logger
}

// Open creates or opens the index at opts.Dir.
func Open(opts Options) (*Index, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10000
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).WithInMemory(opts.InMemory)
	// Badger's own logger is noisy at INFO; all index logging goes
	// through zerolog instead.
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", opts.Dir, err)
	}

	// The zstd codec is always constructed: values written while
	// compression was enabled must stay readable after toggling it off.
	zc, err := newZstdCodec()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &Index{
		db:        db,
		zstd:      zc,
		codec:     identity{},
		batchSize: opts.BatchSize,
		inMemory:  opts.InMemory,
		logger:    logging.With().Str("component", "trackindex").Logger(),
	}
	if opts.Compression {
		ix.codec = zc
	}

	ix.logger.Debug().
		Str("dir", opts.Dir).
		Bool("in_memory", opts.InMemory).
		Bool("compression", opts.Compression).
		Int("batch_size", opts.BatchSize).
		Msg("index opened")
	return ix, nil
}

// keyBytes converts a canonical MBID string to its 16-byte binary key.
func keyBytes(id string) ([]byte, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("index key %q: %w", id, err)
	}
	b := [16]byte(u)
	return b[:], nil
}

// keyString converts a 16-byte binary key back to the canonical MBID.
func keyString(b []byte) (string, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return "", fmt.Errorf("index key %x: %w", b, err)
	}
	return u.String(), nil
}

// Append adds one submission to the group for id, creating the group if
// absent, and returns the group size after the append. Appends accumulate
// in a batched write transaction; call Flush before reading.
func (ix *Index) Append(id string, sub *extract.Submission) (int, error) {
	key, err := keyBytes(id)
	if err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	size, err := ix.appendLocked(key, sub)
	if err != nil {
		return 0, err
	}

	ix.pending++
	if ix.pending >= ix.batchSize {
		if err := ix.commitLocked(); err != nil {
			return 0, err
		}
	}
	return size, nil
}

func (ix *Index) appendLocked(key []byte, sub *extract.Submission) (int, error) {
	if ix.txn == nil {
		ix.txn = ix.db.NewTransaction(true)
	}

	group, err := ix.readGroup(ix.txn, key)
	if err != nil {
		return 0, err
	}
	group = append(group, sub)

	if err := ix.writeGroup(ix.txn, key, group); err != nil {
		// A full transaction is committed and the write retried once
		// in a fresh one.
		if !errors.Is(err, badger.ErrTxnTooBig) {
			return 0, err
		}
		if err := ix.commitLocked(); err != nil {
			return 0, err
		}
		ix.txn = ix.db.NewTransaction(true)
		if err := ix.writeGroup(ix.txn, key, group); err != nil {
			return 0, fmt.Errorf("index append: %w", err)
		}
	}
	return len(group), nil
}

func (ix *Index) readGroup(txn *badger.Txn, key []byte) ([]*extract.Submission, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index read: %w", err)
	}

	var group []*extract.Submission
	err = item.Value(func(value []byte) error {
		payload, err := ix.decodeValue(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(payload, &group)
	})
	if err != nil {
		return nil, fmt.Errorf("index decode: %w", err)
	}
	return group, nil
}

func (ix *Index) writeGroup(txn *badger.Txn, key []byte, group []*extract.Submission) error {
	payload, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("index encode: %w", err)
	}
	value, err := encodeValue(ix.codec, payload)
	if err != nil {
		return err
	}
	return txn.Set(key, value)
}

func (ix *Index) commitLocked() error {
	if ix.txn == nil {
		return nil
	}
	err := ix.txn.Commit()
	ix.txn = nil
	ix.pending = 0
	if err != nil {
		return fmt.Errorf("index commit: %w", err)
	}
	return nil
}

// Replace atomically overwrites the group for id; nil deletes it. Used
// by the merge phase to shrink each group to its canonical record or to
// remove dropped tracks.
func (ix *Index) Replace(id string, group []*extract.Submission) error {
	key, err := keyBytes(id)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.commitLocked(); err != nil {
		return err
	}

	err = ix.db.Update(func(txn *badger.Txn) error {
		if group == nil {
			return txn.Delete(key)
		}
		return ix.writeGroup(txn, key, group)
	})
	if err != nil {
		return fmt.Errorf("index replace: %w", err)
	}
	return nil
}

// Get returns the group for id, or an empty list when absent.
func (ix *Index) Get(id string) ([]*extract.Submission, error) {
	key, err := keyBytes(id)
	if err != nil {
		return nil, err
	}

	var group []*extract.Submission
	err = ix.db.View(func(txn *badger.Txn) error {
		g, err := ix.readGroup(txn, key)
		group = g
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// MustGet behaves like Get but returns ErrNotFound for an empty or
// absent group.
func (ix *Index) MustGet(id string) ([]*extract.Submission, error) {
	group, err := ix.Get(id)
	if err != nil {
		return nil, err
	}
	if len(group) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return group, nil
}

// Keys returns every track MBID in the index.
func (ix *Index) Keys() ([]string, error) {
	var keys []string
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := keyString(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			keys = append(keys, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index keys: %w", err)
	}
	return keys, nil
}

// Items iterates every (id, group) pair in key order, decoding lazily.
// Returning an error from fn aborts the iteration and propagates.
func (ix *Index) Items(fn func(id string, group []*extract.Submission) error) error {
	err := ix.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id, err := keyString(item.KeyCopy(nil))
			if err != nil {
				return err
			}

			var group []*extract.Submission
			err = item.Value(func(value []byte) error {
				payload, err := ix.decodeValue(value)
				if err != nil {
					return err
				}
				return json.Unmarshal(payload, &group)
			})
			if err != nil {
				return fmt.Errorf("index decode %s: %w", id, err)
			}

			if err := fn(id, group); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index iterate: %w", err)
	}
	return nil
}

// Count returns the number of groups.
func (ix *Index) Count() (int, error) {
	count := 0
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("index count: %w", err)
	}
	return count, nil
}

// SizeBytes returns the approximate on-disk footprint.
func (ix *Index) SizeBytes() int64 {
	lsm, vlog := ix.db.Size()
	return lsm + vlog
}

// Flush commits the pending append batch and syncs to disk, making all
// prior writes durable and visible to readers.
func (ix *Index) Flush() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.commitLocked(); err != nil {
		return err
	}
	if !ix.inMemory {
		if err := ix.db.Sync(); err != nil {
			return fmt.Errorf("index sync: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the underlying store.
func (ix *Index) Close() error {
	ix.mu.Lock()
	if err := ix.commitLocked(); err != nil {
		ix.mu.Unlock()
		return err
	}
	ix.mu.Unlock()

	if err := ix.db.Close(); err != nil {
		return fmt.Errorf("index close: %w", err)
	}
	return nil
}
