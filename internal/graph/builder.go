package graph

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/validate"
)

// Builder turns the evidence collected for one sub-claim into a
// trust-scored EvidenceGraph. Output depends only on the set of items,
// never on their arrival order.
type Builder struct {
	cfg model.GraphConfig
}

// NewBuilder creates a graph builder
func NewBuilder(cfg model.GraphConfig) *Builder {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 50
	}
	if cfg.Damping <= 0 || cfg.Damping >= 1 {
		cfg.Damping = 0.85
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1e-6
	}
	return &Builder{cfg: cfg}
}

// Build constructs the graph for a sub-claim
func (b *Builder) Build(sub model.SubClaim, items []model.EvidenceItem) *model.EvidenceGraph {
	g := &model.EvidenceGraph{SubClaim: sub.Index}

	nodes := collapse(canonicalOrder(items))
	claimTokens := extract.TokenSet(sub.Text)
	for i := range nodes {
		n := &nodes[i]
		n.ID = i
		n.Relevance = extract.Overlap(claimTokens, n.Item.Content)
		if s, ok := RatingStance(n.Item.DeclaredRating); ok {
			n.Item.Stance = s
		} else {
			n.Item.Stance = TextStance(claimTokens, n.Item.Content, n.Relevance, b.cfg.RelevanceFloor)
		}
	}
	g.Nodes = nodes

	out := citations(nodes)
	for from, targets := range out {
		for _, to := range targets {
			g.Edges = append(g.Edges, model.GraphEdge{From: from, To: to, Kind: model.EdgeCites})
		}
	}

	g.Clusters = assignClusters(g.Nodes, out)
	g.CircularCitations = citationCycles(out)

	if len(nodes) < 2 {
		g.Sparse = true
		for i := range g.Nodes {
			g.Nodes[i].Trust = g.Nodes[i].Item.Tier.Weight()
		}
		return g
	}

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, c := nodes[i], nodes[j]
			sa, sc := a.Item.Stance, c.Item.Stance
			switch {
			case sa == sc && (sa == model.StanceSupports || sa == model.StanceRefutes) && a.ClusterID != c.ClusterID:
				g.Edges = append(g.Edges, model.GraphEdge{From: i, To: j, Kind: model.EdgeCorroborates})
			case sa.Opposes(sc) && tierGap(a.Item.Tier, c.Item.Tier) <= 1:
				g.Edges = append(g.Edges, model.GraphEdge{From: i, To: j, Kind: model.EdgeContradicts})
			}
		}
	}

	personal := make([]float64, len(nodes))
	for i, n := range nodes {
		personal[i] = n.Item.Tier.Weight()
	}
	ranks, iterations := pageRank(out, personal, b.cfg.Damping, b.cfg.Epsilon, b.cfg.MaxIterations)
	g.Iterations = iterations
	for i := range g.Nodes {
		g.Nodes[i].Trust = model.Clamp01(0.5*personal[i] + 0.5*ranks[i])
	}

	sort.SliceStable(g.Edges, func(i, j int) bool {
		ei, ej := g.Edges[i], g.Edges[j]
		if ei.Kind != ej.Kind {
			return ei.Kind < ej.Kind
		}
		if ei.From != ej.From {
			return ei.From < ej.From
		}
		return ei.To < ej.To
	})

	return g
}

// canonicalOrder sorts items by (provider, url, content, timestamp,
// declared rating, tier, raw confidence). Equal keys are identical evidence.
func canonicalOrder(items []model.EvidenceItem) []model.EvidenceItem {
	sorted := append([]model.EvidenceItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ProviderID != b.ProviderID {
			return a.ProviderID < b.ProviderID
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Content != b.Content {
			return a.Content < b.Content
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.DeclaredRating != b.DeclaredRating {
			return a.DeclaredRating < b.DeclaredRating
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return confidenceLess(a.RawConfidence, b.RawConfidence)
	})
	return sorted
}

// confidenceLess orders a missing confidence before any value
func confidenceLess(a, b *float64) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return *a < *b
	}
}

// collapse merges items that point at the same canonical URL. The first
// item in canonical order survives and records the providers merged into it.
func collapse(items []model.EvidenceItem) []model.GraphNode {
	nodes := make([]model.GraphNode, 0, len(items))
	byURL := make(map[string]int)

	for _, item := range items {
		key := CanonicalURL(item.URL)
		if key != "" {
			if idx, ok := byURL[key]; ok {
				n := &nodes[idx]
				if item.ProviderID != n.Item.ProviderID && !containsString(n.Merged, item.ProviderID) {
					n.Merged = append(n.Merged, item.ProviderID)
				}
				if item.Tier != model.TierUnknown && (n.Item.Tier == model.TierUnknown || item.Tier < n.Item.Tier) {
					n.Item.Tier = item.Tier
				}
				for _, ref := range item.References {
					if !containsString(n.Item.References, ref) {
						n.Item.References = append(n.Item.References, ref)
					}
				}
				continue
			}
			byURL[key] = len(nodes)
		}
		item.References = append([]string(nil), item.References...)
		nodes = append(nodes, model.GraphNode{Item: item})
	}

	for i := range nodes {
		sort.Strings(nodes[i].Merged)
	}
	return nodes
}

// citations returns, per node, the sorted ids of nodes it cites
func citations(nodes []model.GraphNode) [][]int {
	out := make([][]int, len(nodes))
	for i, a := range nodes {
		refs := make(map[string]bool, len(a.Item.References))
		for _, r := range a.Item.References {
			if c := CanonicalURL(r); c != "" {
				refs[c] = true
			}
		}
		content := strings.ToLower(a.Item.Content)
		hostA := hostOf(a.Item.URL)

		for j, c := range nodes {
			if i == j || c.Item.URL == "" {
				continue
			}
			hostC := hostOf(c.Item.URL)
			if hostC == "" || hostC == hostA {
				continue
			}
			canon := CanonicalURL(c.Item.URL)
			if refs[canon] || strings.Contains(content, strings.ToLower(c.Item.URL)) || mentionsHost(content, hostC) {
				out[i] = append(out[i], j)
			}
		}
	}
	return out
}

// assignClusters groups nodes by source family and citation, numbering
// clusters in order of first appearance
func assignClusters(nodes []model.GraphNode, out [][]int) int {
	uf := newUnionFind(len(nodes))
	first := make(map[string]int)
	for i, n := range nodes {
		family := validate.SourceFamily(n.Item.URL)
		if family == "" {
			family = "provider:" + n.Item.ProviderID
		}
		if j, ok := first[family]; ok {
			uf.union(i, j)
		} else {
			first[family] = i
		}
	}
	for from, targets := range out {
		for _, to := range targets {
			uf.union(from, to)
		}
	}

	ids := make(map[int]int)
	for i := range nodes {
		root := uf.find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		nodes[i].ClusterID = id
	}
	return len(ids)
}

// CanonicalURL normalizes a URL for duplicate detection: lowercase scheme
// and host, no www prefix, fragment or trailing slash
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	canon := strings.ToLower(u.Scheme) + "://" + host + path
	if u.RawQuery != "" {
		canon += "?" + u.RawQuery
	}
	return canon
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// mentionsHost reports a bare-domain mention such as "according to nasa.gov"
func mentionsHost(content, host string) bool {
	idx := strings.Index(content, host)
	for idx >= 0 {
		before := idx == 0 || !isHostRune(content[idx-1]) || strings.HasSuffix(content[:idx], "www.")
		end := idx + len(host)
		after := end == len(content) || !isHostRune(content[end]) ||
			(content[end] == '.' && (end+1 == len(content) || content[end+1] == ' '))
		if before && after {
			return true
		}
		next := strings.Index(content[idx+1:], host)
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return false
}

func isHostRune(c byte) bool {
	return c == '.' || c == '-' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func tierGap(a, b model.CredibilityTier) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
