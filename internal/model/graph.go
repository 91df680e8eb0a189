package model

// EvidenceGraph is the trust-scored evidence for one sub-claim
type EvidenceGraph struct {
	SubClaim          int         `json:"sub_claim"`                    // Index of the sub-claim
	Nodes             []GraphNode `json:"nodes"`                        // Canonically ordered
	Edges             []GraphEdge `json:"edges"`                        // Sorted by (kind, from, to)
	Clusters          int         `json:"clusters"`                     // Number of source families
	Sparse            bool        `json:"sparse"`                       // Fewer than 2 items, analysis skipped
	CircularCitations [][]int     `json:"circular_citations,omitempty"` // Node ids per citation cycle
	Iterations        int         `json:"iterations"`                   // Trust propagation rounds used
}

// GraphNode wraps an evidence item with derived graph attributes
type GraphNode struct {
	ID        int          `json:"id"`
	Item      EvidenceItem `json:"item"`
	Trust     float64      `json:"trust_score"`      // Propagated trust in [0,1]
	Relevance float64      `json:"relevance"`        // Token overlap with the sub-claim
	ClusterID int          `json:"cluster_id"`       // Source family
	Merged    []string     `json:"merged,omitempty"` // Providers whose duplicates collapsed here
}

// EdgeKind classifies relations between evidence nodes
type EdgeKind string

const (
	EdgeCites        EdgeKind = "cites"
	EdgeCorroborates EdgeKind = "corroborates"
	EdgeContradicts  EdgeKind = "contradicts"
)

// GraphEdge is a directed relation between two nodes. Corroborates and
// contradicts edges are stored once with From < To.
type GraphEdge struct {
	From int      `json:"from"`
	To   int      `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// EdgesOf returns the edges of the given kind
func (g *EvidenceGraph) EdgesOf(kind EdgeKind) []GraphEdge {
	var out []GraphEdge
	for _, e := range g.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// HasContradictions reports whether any contradicts edge exists
func (g *EvidenceGraph) HasContradictions() bool {
	for _, e := range g.Edges {
		if e.Kind == EdgeContradicts {
			return true
		}
	}
	return false
}

// Len returns the number of evidence nodes
func (g *EvidenceGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}
