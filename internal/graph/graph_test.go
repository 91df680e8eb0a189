package graph

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
)

func newTestBuilder() *Builder {
	return NewBuilder(model.DefaultConfig().Graph)
}

func item(provider, url, content string, tier model.CredibilityTier) model.EvidenceItem {
	return model.EvidenceItem{
		ProviderID: provider,
		Category:   model.CategorySearch,
		URL:        url,
		Content:    content,
		Tier:       tier,
		Timestamp:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func rated(provider, url, rating string, tier model.CredibilityTier) model.EvidenceItem {
	it := item(provider, url, "rating "+rating, tier)
	it.DeclaredRating = rating
	return it
}

func TestRatingStance(t *testing.T) {
	tests := []struct {
		rating string
		want   model.Stance
		ok     bool
	}{
		{"True", model.StanceSupports, true},
		{"Mostly True", model.StanceSupports, true},
		{"supports", model.StanceSupports, true},
		{"False", model.StanceRefutes, true},
		{"Mostly False", model.StanceRefutes, true},
		{"Pants on Fire!", model.StanceRefutes, true},
		{"Not true", model.StanceRefutes, true},
		{"refutes", model.StanceRefutes, true},
		{"Half True", model.StanceNeutral, true},
		{"Mixture", model.StanceNeutral, true},
		{"mixed", model.StanceNeutral, true},
		{"Unproven", model.StanceNeutral, true},
		{"unknown", model.StanceUnclear, true},
		{"Unverifiable", model.StanceUnclear, true},
		{"", "", false},
		{"Satire", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.rating, func(t *testing.T) {
			got, ok := RatingStance(tt.rating)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextStance(t *testing.T) {
	floor := model.DefaultConfig().Graph.RelevanceFloor

	tests := []struct {
		desc    string
		claim   string
		content string
		want    model.Stance
	}{
		{
			desc:    "myth refutes",
			claim:   "The Great Wall of China is visible from space",
			content: "It is a myth that the Great Wall is visible from space with the naked eye.",
			want:    model.StanceRefutes,
		},
		{
			desc:    "confirmed with shared number supports",
			claim:   "The Earth is 4.54 billion years old",
			content: "Radiometric dating confirmed that the Earth is 4.54 billion years old.",
			want:    model.StanceSupports,
		},
		{
			desc:    "not true is not a support cue",
			claim:   "Humans use only 10% of their brains",
			content: "The idea that humans use 10% of their brains is not true.",
			want:    model.StanceRefutes,
		},
		{
			desc:    "irrelevant content is unclear",
			claim:   "The Great Wall of China is visible from space",
			content: "Bananas are rich in potassium.",
			want:    model.StanceUnclear,
		},
		{
			desc:    "restating the claim without cues is neutral",
			claim:   "Paris is the capital of France",
			content: "Paris, capital of France, hosts the Louvre.",
			want:    model.StanceNeutral,
		},
		{
			desc:    "balanced cues are neutral",
			claim:   "Coffee improves memory",
			content: "One study confirmed coffee improves memory, another found it does not.",
			want:    model.StanceNeutral,
		},
		{
			desc:    "low relevance without cues is neutral",
			claim:   "Coffee improves long term memory in adults",
			content: "Coffee is popular with adults.",
			want:    model.StanceNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			tokens := extract.TokenSet(tt.claim)
			rel := extract.Overlap(tokens, tt.content)
			assert.Equal(t, tt.want, TextStance(tokens, tt.content, rel, floor))
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://WWW.Example.com/Page/", "https://example.com/Page"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"HTTP://example.com/a?b=1", "http://example.com/a?b=1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalURL(tt.in), tt.in)
	}
}

func TestBuild_DuplicateCollapse(t *testing.T) {
	sub := model.SubClaim{Index: 0, Text: "The Earth orbits the Sun"}
	items := []model.EvidenceItem{
		item("search-b", "https://www.nasa.gov/earth/", "The Earth orbits the Sun once a year.", model.TierReputable),
		item("search-a", "https://nasa.gov/earth", "The Earth orbits the Sun once a year.", model.TierAuthoritative),
		item("wiki", "https://en.wikipedia.org/wiki/Earth", "Earth orbits the Sun.", model.TierGeneral),
	}

	g := newTestBuilder().Build(sub, items)

	require.Len(t, g.Nodes, 2)
	nasa := g.Nodes[0]
	assert.Equal(t, "search-a", nasa.Item.ProviderID)
	assert.Equal(t, []string{"search-b"}, nasa.Merged)
	assert.Equal(t, model.TierAuthoritative, nasa.Item.Tier)
}

func TestBuild_OrderIndependent(t *testing.T) {
	sub := model.SubClaim{Index: 2, Text: "The Great Wall of China is visible from space"}
	items := []model.EvidenceItem{
		item("search", "https://www.nasa.gov/wall", "It is a myth that the Great Wall is visible from space.", model.TierAuthoritative),
		item("search", "https://blog.example.com/wall", "I saw the Great Wall from space, confirmed! See nasa.gov", model.TierUncertain),
		item("wiki", "https://en.wikipedia.org/wiki/Great_Wall", "The Great Wall is not visible from low orbit with the naked eye, a common misconception.", model.TierGeneral),
		rated("factcheck", "https://www.snopes.com/wall", "False", model.TierAuthoritative),
		rated("gpt", "", "refutes", model.TierGeneral),
	}

	b := newTestBuilder()
	want := b.Build(sub, items)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]model.EvidenceItem(nil), items...)
		rng.Shuffle(len(shuffled), func(a, c int) { shuffled[a], shuffled[c] = shuffled[c], shuffled[a] })
		require.Equal(t, want, b.Build(sub, shuffled))
	}
	assert.Equal(t, 2, want.SubClaim)
}

func TestBuild_OrderIndependentOnTiebreakFields(t *testing.T) {
	sub := model.SubClaim{Text: "Coffee improves memory"}
	low, high := 0.4, 0.9

	withConfidence := func(it model.EvidenceItem, c *float64) model.EvidenceItem {
		it.RawConfidence = c
		return it
	}
	tests := []struct {
		desc  string
		items []model.EvidenceItem
	}{
		{
			desc: "declared rating",
			items: []model.EvidenceItem{
				rated("gpt", "", "supports", model.TierGeneral),
				rated("gpt", "", "refutes", model.TierGeneral),
			},
		},
		{
			desc: "tier",
			items: []model.EvidenceItem{
				item("search", "", "Coffee improves memory, confirmed.", model.TierGeneral),
				item("search", "", "Coffee improves memory, confirmed.", model.TierReputable),
			},
		},
		{
			desc: "raw confidence",
			items: []model.EvidenceItem{
				withConfidence(rated("gpt", "", "supports", model.TierGeneral), &high),
				withConfidence(rated("gpt", "", "supports", model.TierGeneral), nil),
				withConfidence(rated("gpt", "", "supports", model.TierGeneral), &low),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			b := newTestBuilder()
			reversed := make([]model.EvidenceItem, len(tt.items))
			for i, it := range tt.items {
				reversed[len(tt.items)-1-i] = it
			}
			assert.Equal(t, b.Build(sub, tt.items), b.Build(sub, reversed))
		})
	}
}

func TestBuild_CitationCycle(t *testing.T) {
	sub := model.SubClaim{Text: "Coffee improves memory"}
	a := item("p1", "https://alpha.org/coffee", "Coffee improves memory according to beta.net research.", model.TierGeneral)
	b := item("p2", "https://beta.net/coffee", "Coffee improves memory.", model.TierGeneral)
	b.References = []string{"https://alpha.org/coffee"}

	g := newTestBuilder().Build(sub, []model.EvidenceItem{a, b})

	assert.Equal(t, [][]int{{0, 1}}, g.CircularCitations)
	assert.Len(t, g.EdgesOf(model.EdgeCites), 2)
	// Citing sources are not independent
	assert.Equal(t, 1, g.Clusters)
	assert.Empty(t, g.EdgesOf(model.EdgeCorroborates))
}

func TestBuild_ClustersAndCorroboration(t *testing.T) {
	sub := model.SubClaim{Text: "Water boils at 100 degrees Celsius at sea level"}
	items := []model.EvidenceItem{
		rated("a", "https://news.bbc.co.uk/water", "True", model.TierReputable),
		rated("b", "https://www.bbc.co.uk/science/water", "True", model.TierReputable),
		rated("c", "https://www.usgs.gov/water", "True", model.TierAuthoritative),
	}

	g := newTestBuilder().Build(sub, items)

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, 2, g.Clusters)
	assert.Equal(t, g.Nodes[0].ClusterID, g.Nodes[1].ClusterID)
	assert.NotEqual(t, g.Nodes[0].ClusterID, g.Nodes[2].ClusterID)
	assert.Equal(t, []model.GraphEdge{
		{From: 0, To: 2, Kind: model.EdgeCorroborates},
		{From: 1, To: 2, Kind: model.EdgeCorroborates},
	}, g.Edges)
}

func TestBuild_ContradictionNeedsComparableTiers(t *testing.T) {
	sub := model.SubClaim{Text: "Vaccines cause autism"}

	near := newTestBuilder().Build(sub, []model.EvidenceItem{
		rated("a", "https://cdc.gov/autism", "False", model.TierAuthoritative),
		rated("b", "https://news.example.com/autism", "True", model.TierReputable),
	})
	assert.True(t, near.HasContradictions())
	assert.Equal(t, []model.GraphEdge{{From: 0, To: 1, Kind: model.EdgeContradicts}}, near.EdgesOf(model.EdgeContradicts))

	far := newTestBuilder().Build(sub, []model.EvidenceItem{
		rated("a", "https://cdc.gov/autism", "False", model.TierAuthoritative),
		rated("b", "https://forum.example.net/autism", "True", model.TierUncertain),
	})
	assert.False(t, far.HasContradictions())
}

func TestBuild_TrustFollowsCitations(t *testing.T) {
	sub := model.SubClaim{Text: "Mount Everest is 8849 meters tall"}
	items := []model.EvidenceItem{
		item("a", "https://alpha.com/everest", "Mount Everest is 8849 meters tall per gamma.com", model.TierReputable),
		item("b", "https://beta.com/everest", "Mount Everest is 8849 meters tall.", model.TierReputable),
		item("c", "https://gamma.com/everest", "Mount Everest is 8849 meters tall.", model.TierReputable),
	}

	g := newTestBuilder().Build(sub, items)

	require.False(t, g.Sparse)
	assert.Greater(t, g.Nodes[2].Trust, g.Nodes[1].Trust)
	assert.Greater(t, g.Iterations, 0)
	assert.LessOrEqual(t, g.Iterations, 50)
	for _, n := range g.Nodes {
		assert.GreaterOrEqual(t, n.Trust, 0.0)
		assert.LessOrEqual(t, n.Trust, 1.0)
	}
}

func TestBuild_Sparse(t *testing.T) {
	g := newTestBuilder().Build(model.SubClaim{Text: "Paris is the capital of France"}, []model.EvidenceItem{
		rated("a", "https://britannica.com/paris", "True", model.TierReputable),
	})

	assert.True(t, g.Sparse)
	require.Len(t, g.Nodes, 1)
	assert.InDelta(t, model.TierReputable.Weight(), g.Nodes[0].Trust, 1e-9)
	assert.Equal(t, 0, g.Iterations)

	empty := newTestBuilder().Build(model.SubClaim{Text: "x"}, nil)
	assert.True(t, empty.Sparse)
	assert.Equal(t, 0, empty.Len())
}

func TestPageRank_Converges(t *testing.T) {
	out := [][]int{{1}, {2}, {0}}
	ranks, iters := pageRank(out, []float64{1, 1, 1}, 0.85, 1e-9, 200)
	require.Len(t, ranks, 3)
	for _, r := range ranks {
		assert.InDelta(t, 1.0, r, 1e-6)
	}
	assert.Less(t, iters, 200)
}

func TestCitationCycles(t *testing.T) {
	out := [][]int{{1}, {2}, {1}, {}, {3}}
	assert.Equal(t, [][]int{{1, 2}}, citationCycles(out))
	assert.Empty(t, citationCycles([][]int{{1}, {}}))
}
