package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/providers"
	"github.com/ppiankov/veracity/internal/providers/providertest"
)

func scientificClaim() *model.Claim {
	return &model.Claim{
		Text:  "The Earth is approximately 4.5 billion years old",
		Types: []model.ClaimType{model.ClaimTypeScientific, model.ClaimTypeHistorical},
		SubClaims: []model.SubClaim{{
			Text:       "The Earth is approximately 4.5 billion years old",
			Importance: 1,
			Type:       model.ClaimTypeScientific,
			Types:      []model.ClaimType{model.ClaimTypeScientific, model.ClaimTypeHistorical},
		}},
	}
}

func registry() *providers.Registry {
	return providers.NewRegistry(
		providertest.New("openai", model.CategoryAIModel, true),
		providertest.New("semantic", model.CategorySearch, false, model.ClaimTypeScientific),
		providertest.New("archive", model.CategoryKnowledgeBase, false, model.ClaimTypeHistorical),
		providertest.New("politics", model.CategoryFactCheck, false, model.ClaimTypePolitical),
		providertest.New("wikipedia", model.CategoryKnowledgeBase, true),
	)
}

func ids(selections []Selection) []string {
	var out []string
	for _, s := range selections {
		out = append(out, s.Adapter.ID())
	}
	return out
}

func TestSpecializationMatch(t *testing.T) {
	claim := scientificClaim()
	sub := claim.SubClaims[0]

	tests := []struct {
		desc    string
		adapter providers.Adapter
		want    float64
	}{
		{desc: "primary type", adapter: providertest.New("a", model.CategorySearch, false, model.ClaimTypeScientific), want: 1.0},
		{desc: "secondary type", adapter: providertest.New("b", model.CategorySearch, false, model.ClaimTypeHistorical), want: 0.7},
		{desc: "general purpose", adapter: providertest.New("c", model.CategorySearch, true), want: 0.5},
		{desc: "unrelated", adapter: providertest.New("d", model.CategorySearch, false, model.ClaimTypeFinancial), want: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.InDelta(t, tt.want, SpecializationMatch(tt.adapter, claim, sub), 1e-9)
		})
	}
}

func TestRank_AccuracyAndTieBreak(t *testing.T) {
	r := New(registry(), model.DefaultConfig())
	claim := scientificClaim()

	ranked := r.Rank(claim, claim.SubClaims[0], 0, nil)
	// 0.7 accuracy everywhere: semantic 0.7, archive 0.49, openai/wikipedia 0.35 (id order), politics 0.175
	assert.Equal(t, []string{"semantic", "archive", "openai", "wikipedia", "politics"}, ids(ranked))
}

func TestRank_LatencyPenalty(t *testing.T) {
	r := New(registry(), model.DefaultConfig())
	claim := scientificClaim()

	snapshot := &model.ProfileSnapshot{Profiles: map[string]model.ProviderProfile{
		"semantic": {ProviderID: "semantic", HistoricalAccuracy: 0.7, Latency: model.LatencyStats{Mean: 20 * time.Second}},
	}}

	ranked := r.Rank(claim, claim.SubClaims[0], 0.5, snapshot)
	// semantic: 0.7 − 0.5 = 0.2, drops below archive (0.49) and the general adapters (0.35)
	assert.Equal(t, "archive", ranked[0].Adapter.ID())
	assert.Equal(t, "semantic", ranked[3].Adapter.ID())
	assert.InDelta(t, 0.2, ranked[3].Score, 1e-9)

	// Accuracy strategy ignores latency
	ranked = r.Rank(claim, claim.SubClaims[0], 0, snapshot)
	assert.Equal(t, "semantic", ranked[0].Adapter.ID())
}

func TestRank_LearnedSpecialization(t *testing.T) {
	r := New(registry(), model.DefaultConfig())
	claim := scientificClaim()
	snapshot := &model.ProfileSnapshot{Profiles: map[string]model.ProviderProfile{
		"politics": {ProviderID: "politics", HistoricalAccuracy: 0.7, Specializations: []model.ClaimType{model.ClaimTypeHistorical}},
		"semantic": {ProviderID: "semantic", HistoricalAccuracy: 0.7, Specializations: []model.ClaimType{model.ClaimTypeHistorical}},
	}}

	ranked := r.Rank(claim, claim.SubClaims[0], 0, snapshot)
	// politics lifts from 0.175 to 0.49 and ties archive, which sorts first by id
	assert.Equal(t, []string{"semantic", "archive", "politics", "openai", "wikipedia"}, ids(ranked))
	assert.InDelta(t, 0.49, ranked[2].Score, 1e-9)
	assert.InDelta(t, 0.7, ranked[0].Score, 1e-9)
}

func TestPlan_SpeedCapsAndAddsFallback(t *testing.T) {
	reg := providers.NewRegistry(
		providertest.New("a-sci", model.CategorySearch, false, model.ClaimTypeScientific),
		providertest.New("b-sci", model.CategorySearch, false, model.ClaimTypeScientific),
		providertest.New("c-sci", model.CategorySearch, false, model.ClaimTypeScientific),
		providertest.New("d-sci", model.CategorySearch, false, model.ClaimTypeScientific),
		providertest.New("general", model.CategoryKnowledgeBase, true),
	)
	r := New(reg, model.DefaultConfig())

	plan, err := r.Plan(scientificClaim(), model.StrategySpeed, nil)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, plan.CallTimeout)
	assert.Equal(t, 6*time.Second, plan.Deadline)
	require.Len(t, plan.SubClaims, 1)

	selected := plan.SubClaims[0].Providers
	assert.Equal(t, []string{"a-sci", "b-sci", "c-sci", "general"}, ids(selected))
	assert.True(t, selected[3].Fallback)
}

func TestPlan_Comprehensive(t *testing.T) {
	r := New(registry(), model.DefaultConfig())

	plan, err := r.Plan(scientificClaim(), model.StrategyComprehensive, nil)
	require.NoError(t, err)

	// Political-only adapter is irrelevant to a scientific/historical claim
	assert.ElementsMatch(t, []string{"semantic", "archive", "openai", "wikipedia"}, ids(plan.SubClaims[0].Providers))
	assert.Equal(t, []string{"archive", "openai", "semantic", "wikipedia"}, plan.ProviderIDs())
}

func TestPlan_DefaultStrategy(t *testing.T) {
	r := New(registry(), model.DefaultConfig())

	plan, err := r.Plan(scientificClaim(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyBalanced, plan.Strategy)
	assert.Len(t, plan.SubClaims[0].Providers, 5)
}

func TestPlan_Errors(t *testing.T) {
	r := New(providers.NewRegistry(), model.DefaultConfig())
	_, err := r.Plan(scientificClaim(), model.StrategyBalanced, nil)
	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	r = New(registry(), model.DefaultConfig())
	_, err = r.Plan(scientificClaim(), model.Strategy("reckless"), nil)
	var valErr *model.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestPlan_NoGeneralAdapterAvailable(t *testing.T) {
	reg := providers.NewRegistry(providertest.New("only", model.CategorySearch, false, model.ClaimTypeFinancial))
	r := New(reg, model.DefaultConfig())
	assert.False(t, r.HasFallback())
	assert.True(t, New(registry(), model.DefaultConfig()).HasFallback())

	plan, err := r.Plan(scientificClaim(), model.StrategyBalanced, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, ids(plan.SubClaims[0].Providers))
}
