package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore is an embedded Store on BadgerDB. CompareAndSwap runs in a
// read-write transaction; a conflicting commit reports a lost swap.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a badger database at path, or in memory when path is empty
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get retrieves a value
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return out, nil
}

func entry(key string, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}

// Set stores a value
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry(key, value, ttl))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

var errMismatch = errors.New("cache: compare-and-swap mismatch")

// CompareAndSwap replaces the value if it still equals old
func (s *BadgerStore) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		var current []byte
		exists := true
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			exists = false
		case err != nil:
			return err
		default:
			if current, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		if !matches(current, exists, old) {
			return errMismatch
		}
		return txn.SetEntry(entry(key, value, ttl))
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errMismatch), errors.Is(err, badger.ErrConflict):
		return false, nil
	default:
		return false, fmt.Errorf("badger compare-and-swap: %w", err)
	}
}

// Delete removes a value
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// CollectGarbage runs one value-log GC cycle. Having nothing to rewrite is not an error.
func (s *BadgerStore) CollectGarbage() error {
	err := s.db.RunValueLogGC(0.5)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Maintain runs value-log garbage collection
func (s *BadgerStore) Maintain(ctx context.Context) error {
	return s.CollectGarbage()
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
