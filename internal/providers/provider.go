package providers

import (
	"context"
	"sort"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Adapter queries one evidence provider and normalizes its answers.
// Implementations must honor ctx cancellation and never return
// provider-specific shapes; everything is mapped onto model.EvidenceItem.
type Adapter interface {
	// ID returns the stable provider identifier
	ID() string

	// Category returns the provider category
	Category() model.ProviderCategory

	// Specializations returns the claim types this provider is strong on
	Specializations() []model.ClaimType

	// General reports whether the provider can serve any claim type
	General() bool

	// Query retrieves up to maxResults evidence items for the sub-claim.
	// Failures are returned as *ProviderError.
	Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error)
}

// Descriptor is the static part of an adapter, embedded by implementations
type Descriptor struct {
	Name     string
	Kind     model.ProviderCategory
	Special  []model.ClaimType
	Fallback bool
	now      func() time.Time
}

// ID returns the provider identifier
func (d *Descriptor) ID() string { return d.Name }

// Category returns the provider category
func (d *Descriptor) Category() model.ProviderCategory { return d.Kind }

// Specializations returns the declared claim-type specializations
func (d *Descriptor) Specializations() []model.ClaimType { return d.Special }

// General reports whether the provider is a general-purpose fallback
func (d *Descriptor) General() bool { return d.Fallback }

// SetClock overrides the timestamp source for produced items
func (d *Descriptor) SetClock(now func() time.Time) { d.now = now }

func (d *Descriptor) clock() time.Time {
	if d.now == nil {
		return time.Now().UTC()
	}
	return d.now().UTC()
}

// Registry manages configured adapters
type Registry struct {
	adapters []Adapter
	byID     map[string]Adapter
}

// NewRegistry creates a registry with the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byID: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing any adapter with the same id
func (r *Registry) Register(adapter Adapter) {
	if _, exists := r.byID[adapter.ID()]; exists {
		for i, a := range r.adapters {
			if a.ID() == adapter.ID() {
				r.adapters[i] = adapter
			}
		}
	} else {
		r.adapters = append(r.adapters, adapter)
	}
	r.byID[adapter.ID()] = adapter

	sort.Slice(r.adapters, func(i, j int) bool {
		return r.adapters[i].ID() < r.adapters[j].ID()
	})
}

// All returns the adapters ordered by id
func (r *Registry) All() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Get returns the adapter with the given id
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// Fallbacks returns the general-purpose adapters ordered by id
func (r *Registry) Fallbacks() []Adapter {
	var out []Adapter
	for _, a := range r.adapters {
		if a.General() {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of registered adapters
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.adapters)
}
