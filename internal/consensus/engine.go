package consensus

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
)

// Engine computes verdicts from evidence graphs. It holds configuration
// only; Evaluate is a pure function of its arguments.
type Engine struct {
	cfg             model.ConsensusConfig
	initialAccuracy float64
	logger          *zap.Logger
}

// New creates a consensus engine. initialAccuracy is the vote weight of
// providers without a learned profile.
func New(cfg model.ConsensusConfig, initialAccuracy float64, logger *zap.Logger) *Engine {
	defaults := model.DefaultConfig().Consensus
	if cfg.Weights.Sum() == 0 {
		cfg.Weights = defaults.Weights
	}
	if cfg.Thresholds == (model.Thresholds{}) {
		cfg.Thresholds = defaults.Thresholds
	}
	if cfg.CalibrationCeiling <= 0 {
		cfg.CalibrationCeiling = defaults.CalibrationCeiling
	}
	if cfg.UnverifiableConfidence <= 0 {
		cfg.UnverifiableConfidence = defaults.UnverifiableConfidence
	}
	if initialAccuracy <= 0 {
		initialAccuracy = model.DefaultConfig().Learning.InitialAccuracy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, initialAccuracy: initialAccuracy, logger: logger}
}

// Config returns the effective consensus configuration
func (e *Engine) Config() model.ConsensusConfig {
	return e.cfg
}

// subResult is the consensus outcome of one sub-claim
type subResult struct {
	sub          model.SubClaim
	graph        *model.EvidenceGraph
	layers       [7]model.LayerResult
	score        float64
	informative  int // non-abstaining items
	insufficient bool
	staleShare   float64
}

// Evaluate scores a claim from one evidence graph per sub-claim. Graphs are
// matched to sub-claims by index; a missing graph counts as no evidence.
// The returned result carries no request metadata (strategy, timestamps).
func (e *Engine) Evaluate(claim model.Claim, graphs []*model.EvidenceGraph, profiles *model.ProfileSnapshot) (*model.VerificationResult, error) {
	subs := claim.SubClaims
	if len(subs) == 0 {
		subs = []model.SubClaim{{Index: 0, Text: claim.Text, Importance: 1, Type: claim.PrimaryType()}}
	}

	byIndex := make(map[int]*model.EvidenceGraph, len(graphs))
	for _, g := range graphs {
		if g != nil {
			byIndex[g.SubClaim] = g
		}
	}

	results := make([]subResult, len(subs))
	for i, sub := range subs {
		g := byIndex[sub.Index]
		if g == nil {
			g = &model.EvidenceGraph{SubClaim: sub.Index, Sparse: true}
		}
		r, err := e.scoreSubClaim(sub, g, profiles, claim.TimeSensitive)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}

	return e.combine(claim, results, profiles)
}

func (e *Engine) scoreSubClaim(sub model.SubClaim, g *model.EvidenceGraph, profiles *model.ProfileSnapshot, timeSensitive bool) (subResult, error) {
	votes := votesOf(g)
	in := layerInput{
		graph:         g,
		votes:         votes,
		base:          baseRatio(votes),
		profiles:      profiles,
		timeSensitive: timeSensitive,
	}
	w := e.cfg.Weights.Slice()

	r := subResult{
		sub:          sub,
		graph:        g,
		informative:  len(votes),
		insufficient: len(votes) < e.cfg.MinEvidence,
	}

	var scores [7]float64
	var notes [7]string
	scores[0], notes[0] = e.aiAgreement(in)
	scores[1], notes[1] = e.sourceAuthority(in)
	scores[2], notes[2] = e.evidenceStrength(in)
	scores[3], r.staleShare, notes[3] = e.temporal(in)
	scores[4], notes[4] = e.crossReference(in)

	agg := renormalized(scores[:5], w[:5])
	scores[5], notes[5] = e.calibrate(agg, len(votes))

	scores[6] = renormalized(scores[:6], w[:6])
	notes[6] = fmt.Sprintf("weighted combination of layers 1-6: %.2f", scores[6])

	total := 0.0
	for i := range scores {
		if math.IsNaN(scores[i]) || scores[i] < -1e-9 || scores[i] > 1+1e-9 {
			return r, &model.ConsensusComputationError{Layer: i + 1, Reason: fmt.Sprintf("score %v outside [0,1] for sub-claim %d", scores[i], sub.Index)}
		}
		scores[i] = model.Clamp01(scores[i])
		total += w[i] * scores[i]
		r.layers[i] = model.LayerResult{
			Layer:     i + 1,
			Name:      LayerName(i + 1),
			Weight:    w[i],
			Score:     scores[i],
			Rationale: notes[i],
		}
	}
	if sum := e.cfg.Weights.Sum(); sum > 0 {
		total /= sum
	}
	r.score = model.Clamp01(total)
	return r, nil
}

// renormalized is Σ w·s / Σ w over the given layers
func renormalized(scores, weights []float64) float64 {
	var num, den float64
	for i := range scores {
		num += weights[i] * scores[i]
		den += weights[i]
	}
	if den == 0 {
		return 0.5
	}
	return num / den
}

// importances returns normalized sub-claim weights; equal shares when the
// declared importances do not sum to a positive value
func importances(results []subResult) []float64 {
	out := make([]float64, len(results))
	sum := 0.0
	for i, r := range results {
		if r.sub.Importance > 0 {
			out[i] = r.sub.Importance
			sum += r.sub.Importance
		}
	}
	for i := range out {
		if sum > 0 {
			out[i] /= sum
		} else {
			out[i] = 1 / float64(len(out))
		}
	}
	return out
}

func (e *Engine) combine(claim model.Claim, results []subResult, profiles *model.ProfileSnapshot) (*model.VerificationResult, error) {
	weights := importances(results)
	w := e.cfg.Weights.Slice()

	var layerScores [7]float64
	score := 0.0
	informative, total := 0, 0
	contradictions := false
	weakSub := false
	allInsufficient := true

	subScores := make([]model.SubClaimScore, len(results))
	for i, r := range results {
		score += weights[i] * r.score
		for l := range layerScores {
			layerScores[l] += weights[i] * r.layers[l].Score
		}
		informative += r.informative
		total += r.graph.Len()
		if r.graph.HasContradictions() {
			contradictions = true
		}
		if r.score < e.cfg.Thresholds.NeedsContext {
			weakSub = true
		}
		if !r.insufficient {
			allInsufficient = false
		}

		verdict := e.MapVerdict(r.score, r.graph.HasContradictions(), false)
		if r.insufficient {
			verdict = model.VerdictUnverifiable
		}
		subScores[i] = model.SubClaimScore{
			Index:         r.sub.Index,
			Text:          r.sub.Text,
			Importance:    weights[i],
			Score:         r.score,
			Verdict:       verdict,
			EvidenceCount: r.graph.Len(),
			Insufficient:  r.insufficient,
			Layers:        append([]model.LayerResult(nil), r.layers[:]...),
		}
	}
	score = model.Clamp01(score)

	layers := make([]model.LayerResult, 7)
	for l := range layers {
		layers[l] = model.LayerResult{
			Layer:     l + 1,
			Name:      LayerName(l + 1),
			Weight:    w[l],
			Score:     model.Clamp01(layerScores[l]),
			Rationale: layerRationale(results, l),
		}
	}

	unverifiable := informative < e.cfg.MinEvidence || allInsufficient
	var verdict model.Verdict
	confidence := score
	if unverifiable {
		verdict = model.VerdictUnverifiable
		confidence = math.Min(score, e.cfg.UnverifiableConfidence)
	} else {
		verdict = e.MapVerdict(score, contradictions, weakSub)
	}

	result := &model.VerificationResult{
		ClaimID:       claim.ID,
		Claim:         claim.Text,
		Verdict:       verdict,
		Confidence:    model.Clamp01(confidence),
		Score:         score,
		Layers:        layers,
		SubClaims:     subScores,
		Fingerprint:   claim.Fingerprint,
		EvidenceCount: total,
	}
	if profiles != nil {
		result.ProfileVersion = profiles.Version
	}

	result.EvidenceFor, result.EvidenceAgainst = rankEvidence(results)
	result.Alternatives = alternatives(result, e.cfg.Thresholds)
	result.Reasoning = reasoning(layers, verdict, score, len(results))
	result.Warnings = e.warnings(claim, results, result)

	e.logger.Debug("consensus computed",
		zap.String("claim_id", claim.ID),
		zap.String("verdict", string(verdict)),
		zap.Float64("score", score),
		zap.Int("evidence", total))

	return result, nil
}

// layerRationale returns the single sub-claim's rationale, or a summary
// across sub-claims for compound claims
func layerRationale(results []subResult, layer int) string {
	if len(results) == 1 {
		return results[0].layers[layer].Rationale
	}
	s := fmt.Sprintf("importance-weighted across %d sub-claims", len(results))
	for _, r := range results {
		s += fmt.Sprintf("; #%d %.2f", r.sub.Index+1, r.layers[layer].Score)
	}
	return s
}
