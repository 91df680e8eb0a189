package providers

import (
	"context"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
)

// RateLimited wraps an adapter with a per-provider token bucket
type RateLimited struct {
	Adapter
	limiter *worker.Limiter
}

// WithRateLimit wraps adapter so every Query first waits on limiter
func WithRateLimit(adapter Adapter, limiter *worker.Limiter) Adapter {
	if limiter == nil {
		return adapter
	}
	return &RateLimited{Adapter: adapter, limiter: limiter}
}

// Query waits for a token, then delegates. A context that expires while
// waiting is reported as rate limiting, not as a provider timeout.
func (r *RateLimited) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	if err := r.limiter.Wait(ctx, r.ID()); err != nil {
		return nil, NewError(r.ID(), KindRateLimited, err)
	}
	return r.Adapter.Query(ctx, sub, maxResults)
}
