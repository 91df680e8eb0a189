package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrNotFound is returned by Get for missing or expired keys
var ErrNotFound = errors.New("cache: key not found")

// Store is the key-value contract backing verdicts and provider profiles.
// A ttl of zero means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CompareAndSwap stores value only if the current value equals old.
	// A nil old means the key must be absent.
	CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Maintainer is implemented by stores that need periodic housekeeping
type Maintainer interface {
	Maintain(ctx context.Context) error
}

const keyPrefix = "veracity:v1:"

// Key builds a namespaced store key
func Key(parts ...string) string {
	k := keyPrefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// hashKey maps an arbitrary key onto a filesystem-safe name
func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// matches reports whether the current value satisfies a CAS precondition
func matches(current []byte, exists bool, old []byte) bool {
	if old == nil {
		return !exists
	}
	return exists && bytes.Equal(current, old)
}

func expiry(ttl time.Duration, now time.Time) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Open creates the store selected by the cache configuration
func Open(cfg model.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(10 * time.Minute), nil
	case "disk":
		return NewDiskStore(dirOrDefault(cfg.Path, "store")), nil
	case "layered":
		return NewLayeredStore(dirOrDefault(cfg.Path, "store"), cfg.TTL), nil
	case "badger":
		return OpenBadger(cfg.Path)
	case "redis":
		return OpenRedis(cfg.RedisURL)
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(defaultDir(), "veracity.db")
		}
		return OpenSQLite(path)
	default:
		return nil, &model.ConfigurationError{Reason: fmt.Sprintf("unknown cache backend %q", cfg.Backend)}
	}
}

func dirOrDefault(path, name string) string {
	if path != "" {
		return path
	}
	return filepath.Join(defaultDir(), name)
}
