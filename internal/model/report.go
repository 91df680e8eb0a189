package model

import "time"

// VerificationResult is the complete, structured answer for one claim
type VerificationResult struct {
	ClaimID         string          `json:"claim_id"`
	Claim           string          `json:"claim"`
	Verdict         Verdict         `json:"verdict"`
	Confidence      float64         `json:"confidence"`      // Always in [0,1]
	Score           float64         `json:"score"`           // Combined weighted score before verdict mapping
	Layers          []LayerResult   `json:"layer_breakdown"` // Exactly 7 entries
	EvidenceFor     []RankedItem    `json:"evidence_for,omitempty"` // Ranked by trust score
	EvidenceAgainst []RankedItem    `json:"evidence_against,omitempty"`
	Alternatives    []RankedItem    `json:"alternative_perspectives,omitempty"`
	Reasoning       []string        `json:"reasoning_chain"` // One step per layer
	Warnings        []Warning       `json:"warnings,omitempty"`
	SubClaims       []SubClaimScore `json:"sub_claims,omitempty"` // Present for compound claims or full detail
	Strategy        Strategy        `json:"strategy"`
	ProfileVersion  uint64          `json:"profile_version"`
	Fingerprint     string          `json:"fingerprint"`
	EvidenceCount   int             `json:"evidence_count"`
	Cached          bool            `json:"cached"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LayerResult is the output of one consensus layer
type LayerResult struct {
	Layer     int     `json:"layer_id"` // 1..7
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Score     float64 `json:"score"` // In [0,1]
	Rationale string  `json:"rationale"`
}

// RankedItem is an evidence item surfaced in a result
type RankedItem struct {
	ProviderID string           `json:"provider_id"`
	Category   ProviderCategory `json:"provider_category"`
	Content    string           `json:"content"`
	URL        string           `json:"url,omitempty"`
	Publisher  string           `json:"publisher,omitempty"`
	Tier       CredibilityTier  `json:"credibility_tier"`
	Stance     Stance           `json:"stance"`
	Trust      float64          `json:"trust_score"`
	SubClaim   int              `json:"sub_claim"`
}

// SubClaimScore records how one sub-claim contributed to the verdict
type SubClaimScore struct {
	Index         int           `json:"index"`
	Text          string        `json:"text"`
	Importance    float64       `json:"importance"`
	Score         float64       `json:"score"`
	Verdict       Verdict       `json:"verdict"`
	EvidenceCount int           `json:"evidence_count"`
	Insufficient  bool          `json:"insufficient"`
	Layers        []LayerResult `json:"layers,omitempty"`
}

// Verdict is the final classification of a claim
type Verdict string

const (
	VerdictTrue          Verdict = "TRUE"
	VerdictMostlyTrue    Verdict = "MOSTLY_TRUE"
	VerdictPartiallyTrue Verdict = "PARTIALLY_TRUE"
	VerdictNeedsContext  Verdict = "NEEDS_CONTEXT"
	VerdictDisputed      Verdict = "DISPUTED"
	VerdictMisleading    Verdict = "MISLEADING"
	VerdictFalse         Verdict = "FALSE"
	VerdictUnverifiable  Verdict = "UNVERIFIABLE"
)

// Verdicts lists every verdict from most to least supported
func Verdicts() []Verdict {
	return []Verdict{
		VerdictTrue, VerdictMostlyTrue, VerdictPartiallyTrue, VerdictNeedsContext,
		VerdictDisputed, VerdictMisleading, VerdictFalse, VerdictUnverifiable,
	}
}

// ParseVerdict converts a string to a Verdict, returning false for unknown values
func ParseVerdict(s string) (Verdict, bool) {
	for _, v := range Verdicts() {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Target maps a verdict onto the stance scale used by learning.
// UNVERIFIABLE has no target.
func (v Verdict) Target() (float64, bool) {
	switch v {
	case VerdictTrue, VerdictMostlyTrue:
		return 1, true
	case VerdictPartiallyTrue, VerdictNeedsContext, VerdictDisputed:
		return 0.5, true
	case VerdictMisleading, VerdictFalse:
		return 0, true
	default:
		return 0, false
	}
}

// Strategy selects the provider routing and deadline profile
type Strategy string

const (
	StrategySpeed         Strategy = "speed"
	StrategyAccuracy      Strategy = "accuracy"
	StrategyBalanced      Strategy = "balanced"
	StrategyComprehensive Strategy = "comprehensive"
)

// DetailLevel controls how much of the result is returned
type DetailLevel string

const (
	DetailSummary  DetailLevel = "summary"
	DetailStandard DetailLevel = "standard"
	DetailFull     DetailLevel = "full"
)

// Warning is a diagnostic attached to a result
type Warning struct {
	Type     WarningType            `json:"type"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// WarningType classifies result warnings
type WarningType string

const (
	WarningInsufficientEvidence WarningType = "insufficient_evidence"
	WarningSourceDisagreement   WarningType = "source_disagreement"
	WarningOutdatedEvidence     WarningType = "outdated_evidence"
	WarningLowConfidence        WarningType = "low_confidence"
	WarningEchoChamber          WarningType = "echo_chamber"
	WarningCircularCitation     WarningType = "circular_citation"
	WarningSubjective           WarningType = "subjective_claim"
	WarningProviderFailures     WarningType = "provider_failures"
	WarningDeadlineExceeded     WarningType = "deadline_exceeded"
	WarningContextRequired      WarningType = "context_required"
	WarningConsensusError       WarningType = "consensus_error"
)

// Severity indicates the importance of a warning
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// HasWarning reports whether the result carries a warning of the given type
func (r *VerificationResult) HasWarning(t WarningType) bool {
	for _, w := range r.Warnings {
		if w.Type == t {
			return true
		}
	}
	return false
}
