package router

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/providers"
)

// latencyScale is the mean latency at which the latency penalty saturates
const latencyScale = 10 * time.Second

// Selection is one ranked provider for a sub-claim
type Selection struct {
	Adapter  providers.Adapter
	Score    float64 // accuracy × specialization − latency penalty
	Fallback bool    // appended to guarantee a general-purpose provider
}

// SubClaimPlan lists the providers to call for one sub-claim
type SubClaimPlan struct {
	SubClaim  model.SubClaim
	Providers []Selection
}

// Plan is the routing decision for a whole claim
type Plan struct {
	Strategy    model.Strategy
	CallTimeout time.Duration
	Deadline    time.Duration
	MaxResults  int
	SubClaims   []SubClaimPlan
}

// ProviderIDs returns the distinct provider ids across all sub-claims, sorted
func (p *Plan) ProviderIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, sc := range p.SubClaims {
		for _, s := range sc.Providers {
			if !seen[s.Adapter.ID()] {
				seen[s.Adapter.ID()] = true
				ids = append(ids, s.Adapter.ID())
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Router selects adapters per sub-claim from historical accuracy,
// specialization and observed latency
type Router struct {
	registry        *providers.Registry
	strategies      map[model.Strategy]model.StrategyConfig
	initialAccuracy float64
}

// New creates a router over the registry
func New(registry *providers.Registry, cfg *model.Config) *Router {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	return &Router{
		registry:        registry,
		strategies:      cfg.Strategies,
		initialAccuracy: cfg.Learning.InitialAccuracy,
	}
}

// StrategyConfig resolves a strategy name. An empty strategy means balanced.
func (r *Router) StrategyConfig(strategy model.Strategy) (model.Strategy, model.StrategyConfig, error) {
	if strategy == "" {
		strategy = model.StrategyBalanced
	}
	sc, ok := r.strategies[strategy]
	if !ok {
		return strategy, sc, &model.ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	return strategy, sc, nil
}

// HasFallback reports whether a general-purpose adapter is registered.
// Without one, plans carry only specialized adapters and no fallback.
func (r *Router) HasFallback() bool {
	return len(r.registry.Fallbacks()) > 0
}

// Plan builds the provider selection for every sub-claim of claim. When no
// selected adapter is general-purpose, the best-ranked general adapter is
// appended as a fallback if the registry has one.
func (r *Router) Plan(claim *model.Claim, strategy model.Strategy, snapshot *model.ProfileSnapshot) (*Plan, error) {
	if r.registry.Len() == 0 {
		return nil, &model.ConfigurationError{Reason: "no provider adapters are configured"}
	}

	strategy, sc, err := r.StrategyConfig(strategy)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Strategy:    strategy,
		CallTimeout: sc.CallTimeout,
		Deadline:    sc.Deadline,
		MaxResults:  sc.MaxResults,
	}

	for _, sub := range claim.SubClaims {
		plan.SubClaims = append(plan.SubClaims, SubClaimPlan{
			SubClaim:  sub,
			Providers: r.selectFor(claim, sub, strategy, sc, snapshot),
		})
	}

	return plan, nil
}

func (r *Router) selectFor(claim *model.Claim, sub model.SubClaim, strategy model.Strategy, sc model.StrategyConfig, snapshot *model.ProfileSnapshot) []Selection {
	ranked := r.Rank(claim, sub, sc.LatencyWeight, snapshot)

	candidates := ranked
	if strategy == model.StrategyComprehensive {
		// Every adapter relevant to the claim's categories, uncapped
		var relevant []Selection
		for _, s := range ranked {
			if s.Adapter.General() || specializedFor(s.Adapter, claim, sub) {
				relevant = append(relevant, s)
			}
		}
		if len(relevant) > 0 {
			candidates = relevant
		}
	}

	limit := len(candidates)
	if sc.MaxProviders > 0 && sc.MaxProviders < limit {
		limit = sc.MaxProviders
	}
	selected := make([]Selection, limit)
	copy(selected, candidates[:limit])

	for _, s := range selected {
		if s.Adapter.General() {
			return selected
		}
	}
	for _, s := range ranked {
		if s.Adapter.General() {
			s.Fallback = true
			return append(selected, s)
		}
	}
	return selected
}

// Rank scores every registered adapter for the sub-claim, best first.
// A claim type learned from feedback counts like a declared secondary
// specialization. Ties are broken by provider id.
func (r *Router) Rank(claim *model.Claim, sub model.SubClaim, latencyWeight float64, snapshot *model.ProfileSnapshot) []Selection {
	adapters := r.registry.All()
	ranked := make([]Selection, 0, len(adapters))

	for _, a := range adapters {
		accuracy := snapshot.Accuracy(a.ID(), r.initialAccuracy)
		latency := snapshot.MeanLatency(a.ID())
		penalty := latencyWeight * math.Min(float64(latency)/float64(latencyScale), 1)

		match := SpecializationMatch(a, claim, sub)
		if match < 0.7 && snapshot.Learned(a.ID(), subTypes(claim, sub)...) {
			match = 0.7
		}
		ranked = append(ranked, Selection{
			Adapter: a,
			Score:   accuracy*match - penalty,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Adapter.ID() < ranked[j].Adapter.ID()
	})

	return ranked
}

// SpecializationMatch scores how well an adapter fits the sub-claim:
// 1.0 primary type, 0.7 any claim type, 0.5 general-purpose, 0.25 otherwise
func SpecializationMatch(a providers.Adapter, claim *model.Claim, sub model.SubClaim) float64 {
	primary := sub.Type
	if primary == "" && claim != nil {
		primary = claim.PrimaryType()
	}

	for _, t := range a.Specializations() {
		if t == primary {
			return 1.0
		}
	}
	if specializedFor(a, claim, sub) {
		return 0.7
	}
	if a.General() {
		return 0.5
	}
	return 0.25
}

func subTypes(claim *model.Claim, sub model.SubClaim) []model.ClaimType {
	types := append([]model.ClaimType{sub.Type}, sub.Types...)
	if claim != nil {
		types = append(types, claim.Types...)
	}
	return types
}

func specializedFor(a providers.Adapter, claim *model.Claim, sub model.SubClaim) bool {
	for _, t := range a.Specializations() {
		for _, st := range sub.Types {
			if t == st {
				return true
			}
		}
		if t == sub.Type {
			return true
		}
		if claim != nil && claim.HasType(t) {
			return true
		}
	}
	return false
}
