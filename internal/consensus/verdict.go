package consensus

import (
	"fmt"
	"sort"

	"github.com/ppiankov/veracity/internal/model"
)

// MapVerdict maps a final score onto the verdict bands. In the mostly-true
// band the verdict drops to PARTIALLY_TRUE when sources contradict each
// other or a sub-claim scored below the needs-context bound.
func (e *Engine) MapVerdict(score float64, contradictions, weakSubClaim bool) model.Verdict {
	t := e.cfg.Thresholds
	switch {
	case score >= t.True:
		return model.VerdictTrue
	case score >= t.MostlyTrue:
		if contradictions || weakSubClaim {
			return model.VerdictPartiallyTrue
		}
		return model.VerdictMostlyTrue
	case score >= t.NeedsContext:
		return model.VerdictNeedsContext
	case score >= t.Disputed:
		return model.VerdictDisputed
	case score >= t.Misleading:
		return model.VerdictMisleading
	default:
		return model.VerdictFalse
	}
}

func ranked(n *model.GraphNode, sub int) model.RankedItem {
	return model.RankedItem{
		ProviderID: n.Item.ProviderID,
		Category:   n.Item.Category,
		Content:    n.Item.Content,
		URL:        n.Item.URL,
		Publisher:  n.Item.Publisher,
		Tier:       n.Item.Tier,
		Stance:     n.Item.Stance,
		Trust:      n.Trust,
		SubClaim:   sub,
	}
}

// rankEvidence splits supporting and refuting nodes across all sub-claims,
// each ordered by trust descending
func rankEvidence(results []subResult) (support, against []model.RankedItem) {
	for _, r := range results {
		for i := range r.graph.Nodes {
			n := &r.graph.Nodes[i]
			switch n.Item.Stance {
			case model.StanceSupports:
				support = append(support, ranked(n, r.sub.Index))
			case model.StanceRefutes:
				against = append(against, ranked(n, r.sub.Index))
			}
		}
	}
	sortRanked(support)
	sortRanked(against)
	return support, against
}

func sortRanked(items []model.RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Trust != b.Trust {
			return a.Trust > b.Trust
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.ProviderID != b.ProviderID {
			return a.ProviderID < b.ProviderID
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.SubClaim < b.SubClaim
	})
}

const maxAlternatives = 3

// alternatives surfaces the strongest evidence opposing the leaning of the verdict
func alternatives(r *model.VerificationResult, t model.Thresholds) []model.RankedItem {
	var pool []model.RankedItem
	switch {
	case r.Verdict == model.VerdictUnverifiable:
		return nil
	case r.Score >= t.NeedsContext:
		pool = r.EvidenceAgainst
	case r.Score < t.Disputed:
		pool = r.EvidenceFor
	default:
		return nil
	}
	if len(pool) > maxAlternatives {
		pool = pool[:maxAlternatives]
	}
	return append([]model.RankedItem(nil), pool...)
}

// reasoning produces one step per layer followed by the conclusion
func reasoning(layers []model.LayerResult, verdict model.Verdict, score float64, subClaims int) []string {
	steps := make([]string, 0, len(layers))
	for _, l := range layers {
		steps = append(steps, fmt.Sprintf("L%d %s (weight %.2f): score %.2f; %s", l.Layer, l.Name, l.Weight, l.Score, l.Rationale))
	}
	// The synthesis step carries the conclusion so the chain stays one step per layer
	last := len(steps) - 1
	conclusion := fmt.Sprintf("final score %.2f maps to %s", score, verdict)
	if subClaims > 1 {
		conclusion = fmt.Sprintf("%d sub-claims combined by importance; %s", subClaims, conclusion)
	}
	steps[last] += "; " + conclusion
	return steps
}

// Warning thresholds
const (
	staleShareWarning   = 0.5
	disagreementShare   = 0.3
	lowConfidenceMargin = 0.1
	echoChamberMinItems = 3
)

func (e *Engine) warnings(claim model.Claim, results []subResult, res *model.VerificationResult) []model.Warning {
	var out []model.Warning
	add := func(t model.WarningType, sev model.Severity, msg string, data map[string]interface{}) {
		out = append(out, model.Warning{Type: t, Severity: sev, Message: msg, Data: data})
	}

	if res.Verdict == model.VerdictUnverifiable {
		add(model.WarningInsufficientEvidence, model.SeverityCritical,
			fmt.Sprintf("only %d informative evidence item(s); at least %d required", informativeCount(results), e.cfg.MinEvidence),
			map[string]interface{}{"evidence_count": res.EvidenceCount, "minimum": e.cfg.MinEvidence})
	} else {
		for _, r := range results {
			if r.insufficient {
				add(model.WarningInsufficientEvidence, model.SeverityWarning,
					fmt.Sprintf("sub-claim %d has insufficient evidence", r.sub.Index+1),
					map[string]interface{}{"sub_claim": r.sub.Index})
			}
		}
	}

	if claim.Subjective {
		add(model.WarningSubjective, model.SeverityWarning,
			"claim contains opinion markers and may not be objectively verifiable", nil)
	}

	contradictions := 0
	var supportW, refuteW float64
	for _, r := range results {
		contradictions += len(r.graph.EdgesOf(model.EdgeContradicts))
		for _, v := range votesOf(r.graph) {
			switch v.node.Item.Stance {
			case model.StanceSupports:
				supportW += v.node.Trust
			case model.StanceRefutes:
				refuteW += v.node.Trust
			}
		}
	}
	minority := 0.0
	if supportW+refuteW > 0 {
		minority = minFloat(supportW, refuteW) / (supportW + refuteW)
	}
	if contradictions > 0 || minority >= disagreementShare {
		add(model.WarningSourceDisagreement, model.SeverityWarning,
			fmt.Sprintf("sources disagree: %d contradiction(s), minority share %.2f", contradictions, minority),
			map[string]interface{}{"contradictions": contradictions, "minority_share": minority})
	}

	for _, r := range results {
		if r.staleShare > staleShareWarning {
			add(model.WarningOutdatedEvidence, model.SeverityWarning,
				fmt.Sprintf("most evidence for sub-claim %d is older than %s", r.sub.Index+1, e.cfg.StaleAfter),
				map[string]interface{}{"sub_claim": r.sub.Index, "stale_share": r.staleShare})
		}
	}

	if res.Verdict != model.VerdictUnverifiable {
		if cal := res.Layers[LayerCalibration-1].Score; cal > 0.5-lowConfidenceMargin && cal < 0.5+lowConfidenceMargin {
			add(model.WarningLowConfidence, model.SeverityInfo,
				fmt.Sprintf("calibrated score %.2f is close to even", cal), nil)
		}
	}

	for _, r := range results {
		if r.graph.Len() >= echoChamberMinItems && r.graph.Clusters == 1 {
			add(model.WarningEchoChamber, model.SeverityWarning,
				fmt.Sprintf("all %d items for sub-claim %d trace back to one source family", r.graph.Len(), r.sub.Index+1),
				map[string]interface{}{"sub_claim": r.sub.Index})
		}
		if n := len(r.graph.CircularCitations); n > 0 {
			add(model.WarningCircularCitation, model.SeverityInfo,
				fmt.Sprintf("%d circular citation chain(s) for sub-claim %d", n, r.sub.Index+1),
				map[string]interface{}{"sub_claim": r.sub.Index, "cycles": r.graph.CircularCitations})
		}
	}

	if res.Verdict == model.VerdictNeedsContext || res.Verdict == model.VerdictPartiallyTrue {
		add(model.WarningContextRequired, model.SeverityInfo,
			"claim is accurate only with additional context", nil)
	}

	return out
}

func informativeCount(results []subResult) int {
	n := 0
	for _, r := range results {
		n += r.informative
	}
	return n
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
