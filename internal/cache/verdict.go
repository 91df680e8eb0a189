package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
)

// VerdictCache stores verification results keyed by claim fingerprint,
// profile version and strategy. A profile update bumps the version, so
// older entries are never read again and simply expire.
type VerdictCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewVerdictCache wraps a store
func NewVerdictCache(store Store, ttl time.Duration, logger *zap.Logger) *VerdictCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerdictCache{store: store, ttl: ttl, logger: logger}
}

// VerdictKey builds the cache key of a result
func VerdictKey(fingerprint string, version uint64, strategy model.Strategy) string {
	return Key("verdict", fingerprint, strconv.FormatUint(version, 10), string(strategy))
}

// Get returns a cached result. Store errors are logged and reported as a miss.
func (c *VerdictCache) Get(ctx context.Context, fingerprint string, version uint64, strategy model.Strategy) (*model.VerificationResult, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	key := VerdictKey(fingerprint, version, strategy)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("verdict cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var result model.VerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("discarding corrupt verdict cache entry", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return &result, true
}

// Put stores a result under its fingerprint, profile version and strategy
func (c *VerdictCache) Put(ctx context.Context, result *model.VerificationResult) error {
	if c == nil || c.store == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return c.store.Set(ctx, VerdictKey(result.Fingerprint, result.ProfileVersion, result.Strategy), data, c.ttl)
}
