package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

// Dependencies are shared resources handed to adapters
type Dependencies struct {
	HTTPClient *http.Client
	Tiers      TierClassifier
	Limiter    *worker.Limiter
	Logger     *zap.Logger
}

// Build creates a registry from configuration. Disabled providers and
// providers whose credentials are missing are skipped with a log line;
// unknown kinds are configuration errors.
func Build(ctx context.Context, cfg *model.Config, deps Dependencies) (*Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := deps.HTTPClient
	if client == nil {
		client = util.NewHTTPClient(cfg.HTTP)
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	}

	var fetcher *PageFetcher
	registry := NewRegistry()

	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		if pc.ID == "" {
			pc.ID = pc.Kind
		}

		apiKey := resolveKey(pc)

		var (
			adapter Adapter
			err     error
		)
		switch strings.ToLower(pc.Kind) {
		case "openai":
			adapter, err = NewOpenAIAdapter(pc, apiKey)
		case "anthropic", "claude":
			adapter, err = NewAnthropicAdapter(pc, apiKey)
		case "compat", "openai-compatible":
			adapter, err = NewCompatAdapter(pc, apiKey)
		case "ollama":
			adapter = NewOllamaAdapter(pc, client)
		case "wikipedia":
			adapter = NewWikipediaAdapter(pc, client)
		case "factcheck", "google-factcheck":
			adapter, err = NewFactCheckAdapter(ctx, pc, apiKey, client, deps.Tiers)
		case "search":
			var pageFetcher *PageFetcher
			if pc.FetchPages {
				if fetcher == nil {
					var robots RobotsPolicy
					if cfg.HTTP.RespectRobots {
						robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, client)
					}
					fetcher = NewPageFetcher(client, robots, cfg.HTTP.MaxBodyBytes)
				}
				pageFetcher = fetcher
			}
			adapter, err = NewSearchAdapter(pc, apiKey, client, pageFetcher, deps.Tiers)
		default:
			return nil, &model.ConfigurationError{Reason: fmt.Sprintf("provider %s has unknown kind %q", pc.ID, pc.Kind)}
		}

		if err != nil {
			logger.Warn("Skipping provider", zap.String("provider", pc.ID), zap.Error(err))
			continue
		}

		if pc.RequestsPerSecond > 0 {
			limiter.SetRate(pc.ID, pc.RequestsPerSecond, pc.Burst)
		}
		registry.Register(WithRateLimit(adapter, limiter))
		logger.Debug("Registered provider", zap.String("provider", pc.ID), zap.String("kind", pc.Kind))
	}

	return registry, nil
}

func resolveKey(pc model.ProviderConfig) string {
	if pc.APIKey != "" {
		return pc.APIKey
	}
	if pc.APIKeyEnv != "" {
		return os.Getenv(pc.APIKeyEnv)
	}
	return ""
}

// descriptorFor builds the static adapter description from configuration
func descriptorFor(cfg model.ProviderConfig, category model.ProviderCategory) Descriptor {
	var special []model.ClaimType
	for _, s := range cfg.Specializations {
		if t, ok := model.ParseClaimType(s); ok {
			special = append(special, t)
		}
	}
	return Descriptor{
		Name:     cfg.ID,
		Kind:     category,
		Special:  special,
		Fallback: cfg.General,
	}
}
