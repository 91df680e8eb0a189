package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiskStore persists entries as JSON files, one per key
type DiskStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewDiskStore creates a disk store rooted at dir
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir, now: time.Now}
}

type diskEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// defaultDir returns ~/.veracity, falling back to the working directory
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veracity"
	}
	return filepath.Join(home, ".veracity")
}

// Get retrieves a value from disk
func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry.Data, nil
}

// read loads a live entry; expired entries are removed and reported as nil
func (s *DiskStore) read(key string) (*diskEntry, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entries are treated as absent
		_ = os.Remove(path)
		return nil, nil
	}

	if !entry.ExpiresAt.IsZero() && s.now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, nil
	}
	return &entry, nil
}

func (s *DiskStore) write(key string, value []byte, ttl time.Duration) error {
	entry := diskEntry{
		Key:       key,
		Data:      value,
		ExpiresAt: expiry(ttl, s.now()),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Write then rename so readers never observe a partial file
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Set stores a value on disk
func (s *DiskStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value, ttl)
}

// CompareAndSwap replaces the value if it still equals old
func (s *DiskStore) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(key)
	if err != nil {
		return false, err
	}
	var current []byte
	if entry != nil {
		current = entry.Data
	}
	if !matches(current, entry != nil, old) {
		return false, nil
	}
	return true, s.write(key, value, ttl)
}

// Delete removes a value from disk
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cached files
func (s *DiskStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.dir)
}

// Close is a no-op
func (s *DiskStore) Close() error { return nil }

// path generates the file path for a key
func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, hashKey(key)+".cache")
}
