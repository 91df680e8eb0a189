package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredStore fronts a disk store with memory. Disk is authoritative for
// CompareAndSwap; memory only serves reads.
type LayeredStore struct {
	memory     *MemoryStore
	disk       *DiskStore
	promoteTTL time.Duration
}

// NewLayeredStore creates a memory + disk store. Entries promoted from disk
// stay in memory for at most promoteTTL.
func NewLayeredStore(diskDir string, promoteTTL time.Duration) *LayeredStore {
	return &LayeredStore{
		memory:     NewMemoryStore(10 * time.Minute),
		disk:       NewDiskStore(diskDir),
		promoteTTL: promoteTTL,
	}
}

// Get retrieves a value (checks memory first, then disk)
func (s *LayeredStore) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := s.memory.Get(ctx, key); err == nil {
		return val, nil
	}

	val, err := s.disk.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	// Promote to memory
	_ = s.memory.Set(ctx, key, val, s.promoteTTL)
	return val, nil
}

// Set stores a value in both layers
func (s *LayeredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.disk.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return s.memory.Set(ctx, key, value, ttl)
}

// CompareAndSwap swaps on disk and refreshes memory on success
func (s *LayeredStore) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.disk.CompareAndSwap(ctx, key, old, value, ttl)
	if err != nil || !ok {
		// Memory may hold a value that lost a race elsewhere
		_ = s.memory.Delete(ctx, key)
		return ok, err
	}
	return true, s.memory.Set(ctx, key, value, ttl)
}

// Delete removes a value from both layers
func (s *LayeredStore) Delete(ctx context.Context, key string) error {
	_ = s.memory.Delete(ctx, key)
	if err := s.disk.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Close releases both layers
func (s *LayeredStore) Close() error {
	return s.disk.Close()
}
