package store

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

const pebbleDir = "pebble"

// Store is a Pebble-backed snapshot of the local calorie dataset, keyed by
// the raw food name.
type Store struct {
	db *pebble.DB
}

// OpenReadOnly opens an existing data directory in read-only mode (for the server).
func OpenReadOnly(dataDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(dataDir, pebbleDir), &pebble.Options{
		ReadOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble (read-only): %w", err)
	}
	return &Store{db: db}, nil
}

// Create initialises a fresh data directory for the importer.
func Create(dataDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(dataDir, pebbleDir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("create pebble: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases all resources held by the store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

// WriteBatch accumulates entries for batched writes to Pebble.
type WriteBatch struct {
	pb    *pebble.Batch
	count int
}

// NewWriteBatch creates a new WriteBatch backed by the given store.
func (s *Store) NewWriteBatch() *WriteBatch {
	return &WriteBatch{pb: s.db.NewBatch()}
}

// Put accumulates an entry in the batch without flushing.
func (b *WriteBatch) Put(name string, kcal float64) {
	_ = b.pb.Set([]byte(name), encodeCalories(kcal), pebble.NoSync)
	b.count++
}

// Flush commits the batch and resets the accumulator.
func (b *WriteBatch) Flush() error {
	if err := b.pb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble batch commit: %w", err)
	}
	b.pb.Reset()
	b.count = 0
	return nil
}

// Close flushes any pending data and releases the pebble batch memory.
func (b *WriteBatch) Close() error {
	if b.count > 0 {
		if err := b.Flush(); err != nil {
			b.pb.Close()
			return err
		}
	}
	b.pb.Close()
	return nil
}

// Len returns the number of records accumulated since the last flush.
func (b *WriteBatch) Len() int {
	return b.count
}

// Each calls fn for every stored entry in key order. Iteration stops at the
// first error returned by fn.
func (s *Store) Each(fn func(name string, kcal float64) error) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		// Key is only valid until the iterator moves; string() copies it.
		name := string(iter.Key())
		kcal, err := decodeCalories(iter.Value())
		if err != nil {
			return fmt.Errorf("decode %q: %w", name, err)
		}
		if err := fn(name, kcal); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	return nil
}
