package consensus

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Layer ids in evaluation order
const (
	LayerAIAgreement = iota + 1
	LayerSourceAuthority
	LayerEvidenceStrength
	LayerTemporal
	LayerCrossReference
	LayerCalibration
	LayerSynthesis
)

var layerNames = [7]string{
	"AI-model agreement",
	"Source authority",
	"Evidence strength",
	"Temporal consistency",
	"Cross-reference validation",
	"Confidence calibration",
	"Verdict synthesis",
}

// LayerName returns the display name of a layer id (1..7)
func LayerName(id int) string {
	if id < 1 || id > len(layerNames) {
		return ""
	}
	return layerNames[id-1]
}

// vote is one non-abstaining evidence node
type vote struct {
	node  *model.GraphNode
	score float64 // stance score in [0,1]
}

func votesOf(g *model.EvidenceGraph) []vote {
	if g == nil {
		return nil
	}
	var out []vote
	for i := range g.Nodes {
		if s, ok := g.Nodes[i].Item.Stance.Score(); ok {
			out = append(out, vote{node: &g.Nodes[i], score: s})
		}
	}
	return out
}

// weightedMean returns Σ w·s / Σ w and false when the total weight is zero
func weightedMean(votes []vote, weight func(vote) float64) (float64, bool) {
	var num, den float64
	for _, v := range votes {
		w := weight(v)
		if w <= 0 || math.IsNaN(w) {
			continue
		}
		num += w * v.score
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// baseRatio is the trust-weighted stance mean, the fallback for layers
// without applicable evidence
func baseRatio(votes []vote) float64 {
	if len(votes) == 0 {
		return 0.5
	}
	if m, ok := weightedMean(votes, func(v vote) float64 { return v.node.Trust }); ok {
		return m
	}
	sum := 0.0
	for _, v := range votes {
		sum += v.score
	}
	return sum / float64(len(votes))
}

// layerInput is everything one sub-claim's layers read
type layerInput struct {
	graph         *model.EvidenceGraph
	votes         []vote
	base          float64
	profiles      *model.ProfileSnapshot
	timeSensitive bool
}

func (e *Engine) aiAgreement(in layerInput) (float64, string) {
	var ai []vote
	for _, v := range in.votes {
		if v.node.Item.Category == model.CategoryAIModel {
			ai = append(ai, v)
		}
	}
	score, ok := weightedMean(ai, func(v vote) float64 {
		return in.profiles.Accuracy(v.node.Item.ProviderID, e.initialAccuracy) * v.node.Item.Confidence()
	})
	if !ok {
		return in.base, fmt.Sprintf("no AI model votes; base support ratio %.2f", in.base)
	}
	supporting := 0
	for _, v := range ai {
		if v.score > 0.5 {
			supporting++
		}
	}
	return score, fmt.Sprintf("%d of %d AI model votes support, accuracy-weighted agreement %.2f", supporting, len(ai), score)
}

func (e *Engine) sourceAuthority(in layerInput) (float64, string) {
	score, ok := weightedMean(in.votes, func(v vote) float64 {
		return v.node.Item.Tier.Points() * v.node.Trust
	})
	if !ok {
		return in.base, fmt.Sprintf("no weighted sources; base support ratio %.2f", in.base)
	}
	tier1 := 0
	for _, v := range in.votes {
		if v.node.Item.Tier == model.TierAuthoritative {
			tier1++
		}
	}
	return score, fmt.Sprintf("%d source(s), %d authoritative, authority-weighted support %.2f", len(in.votes), tier1, score)
}

// strength combines tier, specificity (content length) and relevance
func strength(n *model.GraphNode) float64 {
	specificity := math.Min(float64(len(n.Item.Content))/500, 1)
	return n.Item.Tier.Weight() * (0.5 + 0.5*specificity) * n.Relevance
}

func (e *Engine) evidenceStrength(in layerInput) (float64, string) {
	score, ok := weightedMean(in.votes, func(v vote) float64 { return strength(v.node) })
	if !ok {
		return in.base, fmt.Sprintf("no directly relevant evidence; base support ratio %.2f", in.base)
	}
	total := 0.0
	for _, v := range in.votes {
		total += strength(v.node)
	}
	return score, fmt.Sprintf("mean item strength %.2f, strength-weighted support %.2f", total/float64(len(in.votes)), score)
}

// temporal rewards a stance that is stable over time and, for
// time-sensitive claims, shrinks toward 0.5 as evidence goes stale. The
// reference time is the newest evidence timestamp, never the wall clock.
func (e *Engine) temporal(in layerInput) (score float64, staleShare float64, rationale string) {
	if len(in.votes) == 0 {
		return in.base, 0, fmt.Sprintf("no dated evidence; base support ratio %.2f", in.base)
	}

	ordered := append([]vote(nil), in.votes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].node.Item.Timestamp, ordered[j].node.Item.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ordered[i].node.ID < ordered[j].node.ID
	})

	var ref time.Time
	for _, v := range ordered {
		if v.node.Item.Timestamp.After(ref) {
			ref = v.node.Item.Timestamp
		}
	}

	stability := 1.0
	if len(ordered) >= 2 {
		half := len(ordered) / 2
		stability = 1 - math.Abs(meanScore(ordered[:half])-meanScore(ordered[half:]))
	}

	if !in.timeSensitive || e.cfg.StaleAfter <= 0 {
		mean := meanScore(ordered)
		score = 0.5 + (mean-0.5)*stability
		return score, 0, fmt.Sprintf("stance stability %.2f across %d item(s)", stability, len(ordered))
	}

	stale := 0
	var fresh float64
	freshness := func(v vote) float64 {
		ts := v.node.Item.Timestamp
		if ts.IsZero() {
			return 1
		}
		age := ref.Sub(ts)
		if age <= e.cfg.StaleAfter {
			return 1
		}
		return float64(e.cfg.StaleAfter) / float64(age)
	}
	for _, v := range ordered {
		f := freshness(v)
		if f < 1 {
			stale++
		}
		fresh += f
	}
	meanFresh := fresh / float64(len(ordered))
	mean, _ := weightedMean(ordered, freshness)
	score = 0.5 + (mean-0.5)*stability*meanFresh
	staleShare = float64(stale) / float64(len(ordered))
	return score, staleShare, fmt.Sprintf("time-sensitive claim: %d of %d item(s) stale, freshness %.2f, stability %.2f", stale, len(ordered), meanFresh, stability)
}

func meanScore(votes []vote) float64 {
	if len(votes) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, v := range votes {
		sum += v.score
	}
	return sum / float64(len(votes))
}

// crossReference averages stance per source cluster and scales the
// deviation from 0.5 by how many independent clusters agree
func (e *Engine) crossReference(in layerInput) (float64, string) {
	if len(in.votes) == 0 {
		return in.base, fmt.Sprintf("no clustered evidence; base support ratio %.2f", in.base)
	}
	clusters := in.graph.Clusters
	for _, v := range in.votes {
		if v.node.ClusterID >= clusters {
			clusters = v.node.ClusterID + 1
		}
	}
	sums := make([]float64, clusters)
	counts := make([]int, clusters)
	for _, v := range in.votes {
		sums[v.node.ClusterID] += v.score
		counts[v.node.ClusterID]++
	}

	independent := 0
	ratio := 0.0
	for c := range sums {
		if counts[c] == 0 {
			continue
		}
		independent++
		ratio += sums[c] / float64(counts[c])
	}
	ratio /= float64(independent)

	score := 0.5 + (ratio-0.5)*math.Min(1, float64(independent)/3)
	return score, fmt.Sprintf("%d independent source famil(ies), cluster agreement %.2f", independent, ratio)
}

// calibrate shrinks the aggregate toward 0.5 in proportion to how little
// evidence backs it, then clamps to the calibration bounds
func (e *Engine) calibrate(agg float64, n int) (float64, string) {
	prior := e.cfg.PriorStrength
	if prior < 0 {
		prior = 0
	}
	shrink := 1.0
	if float64(n)+prior > 0 {
		shrink = float64(n) / (float64(n) + prior)
	}
	score := 0.5 + (agg-0.5)*shrink
	score = math.Max(e.cfg.CalibrationFloor, math.Min(e.cfg.CalibrationCeiling, score))
	return score, fmt.Sprintf("aggregate %.2f shrunk by %d/(%d+%.0f) to %.2f", agg, n, n, prior, score)
}
