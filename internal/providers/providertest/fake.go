// Package providertest provides scripted adapters for tests
package providertest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/providers"
)

// Fake is an adapter that returns canned evidence
type Fake struct {
	providers.Descriptor
	Items   []model.EvidenceItem
	Err     error
	Delay   time.Duration
	Respond func(sub model.SubClaim) ([]model.EvidenceItem, error) // overrides Items/Err when set

	calls atomic.Int64
}

// New creates a fake adapter
func New(id string, category model.ProviderCategory, general bool, special ...model.ClaimType) *Fake {
	return &Fake{Descriptor: providers.Descriptor{
		Name:     id,
		Kind:     category,
		Special:  special,
		Fallback: general,
	}}
}

// WithItems sets the canned items, stamping the provider id and category
func (f *Fake) WithItems(items ...model.EvidenceItem) *Fake {
	for i := range items {
		if items[i].ProviderID == "" {
			items[i].ProviderID = f.Name
		}
		if items[i].Category == "" {
			items[i].Category = f.Kind
		}
	}
	f.Items = items
	return f
}

// WithError makes every query fail with err
func (f *Fake) WithError(err error) *Fake {
	f.Err = err
	return f
}

// WithDelay makes every query wait d (or until ctx is done)
func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.Delay = d
	return f
}

// Calls returns the number of Query invocations
func (f *Fake) Calls() int64 {
	return f.calls.Load()
}

// Query returns the canned response
func (f *Fake) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	f.calls.Add(1)

	if f.Delay > 0 {
		timer := time.NewTimer(f.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, providers.Classify(f.Name, ctx.Err())
		case <-timer.C:
		}
	}

	if f.Respond != nil {
		return f.Respond(sub)
	}
	if f.Err != nil {
		return nil, f.Err
	}

	out := make([]model.EvidenceItem, len(f.Items))
	copy(out, f.Items)
	return out, nil
}
