package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/observe"
	"github.com/ppiankov/veracity/internal/providers"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/validate"
)

// Open builds a pipeline from configuration alone: the configured cache
// backend, every enabled provider adapter and the given sink
func Open(ctx context.Context, cfg *model.Config, logger *zap.Logger, sink observe.Sink) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	registry, err := providers.Build(ctx, cfg, providers.Dependencies{
		HTTPClient: util.NewHTTPClient(cfg.HTTP),
		Tiers:      validate.NewAuthorityClassifier(&cfg.Authority),
		Logger:     logger.Named("providers"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if registry.Len() == 0 {
		logger.Warn("no provider adapters available; verification requests will fail until one is configured")
	}

	p, err := New(ctx, cfg, Options{
		Registry: registry,
		Store:    store,
		Sink:     sink,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the persistence backend
func (p *Pipeline) Close() error {
	return p.store.Close()
}
