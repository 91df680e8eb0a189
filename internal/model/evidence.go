package model

import (
	"math"
	"time"
)

// EvidenceItem is one piece of information retrieved from a provider.
// Adapters normalize their wire formats into this shape; provider-specific
// fields travel in Metadata and are never interpreted by the core.
type EvidenceItem struct {
	ProviderID     string            `json:"provider_id"`
	Category       ProviderCategory  `json:"provider_category"`
	Content        string            `json:"content"`                   // Snippet or model explanation
	URL            string            `json:"url,omitempty"`             // Source location, optional
	Publisher      string            `json:"publisher,omitempty"`       // Publisher or site name
	References     []string          `json:"references,omitempty"`      // URLs this item cites
	Tier           CredibilityTier   `json:"credibility_tier"`          // 1 (highest) .. 4
	Stance         Stance            `json:"stance"`                    // Assigned by the graph builder
	DeclaredRating string            `json:"declared_rating,omitempty"` // Explicit verdict from the provider
	Timestamp      time.Time         `json:"timestamp"`                 // Publication or retrieval time
	RawConfidence  *float64          `json:"raw_confidence,omitempty"`  // Provider-reported, 0..1
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Confidence returns the provider-reported confidence or 1 when absent
func (e EvidenceItem) Confidence() float64 {
	if e.RawConfidence == nil {
		return 1
	}
	return Clamp01(*e.RawConfidence)
}

// ProviderCategory classifies evidence providers
type ProviderCategory string

const (
	CategoryAIModel       ProviderCategory = "ai_model"
	CategorySearch        ProviderCategory = "search"
	CategoryKnowledgeBase ProviderCategory = "knowledge_base"
	CategoryFactCheck     ProviderCategory = "fact_check_org"
)

// CredibilityTier ranks source authority (1 = highest)
type CredibilityTier int

const (
	TierUnknown       CredibilityTier = 0 // Not yet classified
	TierAuthoritative CredibilityTier = 1 // Peer-reviewed, government, fact-check orgs, wire services
	TierReputable     CredibilityTier = 2 // Major news, universities, encyclopedias
	TierGeneral       CredibilityTier = 3 // Wikipedia, general reference
	TierUncertain     CredibilityTier = 4 // Social media, forums, unknown blogs
)

func (t CredibilityTier) String() string {
	switch t {
	case TierAuthoritative:
		return "authoritative"
	case TierReputable:
		return "reputable"
	case TierGeneral:
		return "general"
	case TierUncertain:
		return "uncertain"
	default:
		return "unknown"
	}
}

// Points returns the source-authority points used by the consensus engine
func (t CredibilityTier) Points() float64 {
	switch t {
	case TierAuthoritative:
		return 40
	case TierReputable:
		return 20
	case TierGeneral:
		return 10
	default:
		return 5
	}
}

// Weight returns the face-value trust of the tier in [0,1]
func (t CredibilityTier) Weight() float64 {
	switch t {
	case TierAuthoritative:
		return 1.0
	case TierReputable:
		return 0.7
	case TierGeneral:
		return 0.4
	default:
		return 0.15
	}
}

// Stance is an evidence item's position relative to the claim
type Stance string

const (
	StanceSupports Stance = "supports"
	StanceRefutes  Stance = "refutes"
	StanceNeutral  Stance = "neutral"
	StanceUnclear  Stance = "unclear"
)

// Score maps a stance onto [0,1]. Unclear stances abstain and report ok=false.
func (s Stance) Score() (score float64, ok bool) {
	switch s {
	case StanceSupports:
		return 1, true
	case StanceRefutes:
		return 0, true
	case StanceNeutral:
		return 0.5, true
	default:
		return 0, false
	}
}

// Opposes reports whether two stances are opposite
func (s Stance) Opposes(other Stance) bool {
	return (s == StanceSupports && other == StanceRefutes) ||
		(s == StanceRefutes && other == StanceSupports)
}

// Clamp01 restricts v to [0,1]
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
