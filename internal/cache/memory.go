package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store backed by go-cache
type MemoryStore struct {
	mu    sync.Mutex // serializes CompareAndSwap against writers
	cache *gocache.Cache
}

// NewMemoryStore creates a memory store that purges expired entries every cleanupInterval
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func goCacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

// Get retrieves a value
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if val, found := s.cache.Get(key); found {
		return append([]byte(nil), val.([]byte)...), nil
	}
	return nil, ErrNotFound
}

// Set stores a value with the given TTL
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, append([]byte(nil), value...), goCacheTTL(ttl))
	return nil
}

// CompareAndSwap replaces the value if it still equals old
func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	val, exists := s.cache.Get(key)
	if exists {
		current = val.([]byte)
	}
	if !matches(current, exists, old) {
		return false, nil
	}
	s.cache.Set(key, append([]byte(nil), value...), goCacheTTL(ttl))
	return true, nil
}

// Delete removes a value
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}

// Clear removes all values
func (s *MemoryStore) Clear() {
	s.cache.Flush()
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
