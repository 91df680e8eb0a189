package model

import "time"

// Claim represents a checkable assertion submitted for verification
type Claim struct {
	ID            string      `json:"id"`                       // Request-scoped identifier (uuid)
	Text          string      `json:"text"`                     // Raw claim text as submitted
	Normalized    string      `json:"normalized"`               // Lowercased, punctuation-stripped text
	Fingerprint   string      `json:"fingerprint"`              // sha256 of the normalized text
	Types         []ClaimType `json:"types"`                    // All matched categories, primary first
	SubClaims     []SubClaim  `json:"sub_claims"`               // Ordered clauses, weights sum to 1.0
	Subjective    bool        `json:"subjective,omitempty"`     // Opinion markers detected
	TimeSensitive bool        `json:"time_sensitive,omitempty"` // Truth may change over time
	ReceivedAt    time.Time   `json:"received_at"`
}

// PrimaryType returns the highest-ranked claim type
func (c Claim) PrimaryType() ClaimType {
	if len(c.Types) == 0 {
		return ClaimTypeGeneral
	}
	return c.Types[0]
}

// SubClaim is an independently verifiable clause of a claim
type SubClaim struct {
	Index      int         `json:"index"`             // Position in the parent claim
	Text       string      `json:"text"`              // Clause text
	Importance float64     `json:"importance"`        // Weight in [0,1]
	Type       ClaimType   `json:"type"`              // Primary category of the clause
	Types      []ClaimType `json:"types,omitempty"`   // All matched categories
	Priority   int         `json:"priority,omitempty"` // Heuristic priority 1..5
}

// ClaimType categorizes the domain of a claim
type ClaimType string

const (
	ClaimTypeScientific   ClaimType = "scientific"
	ClaimTypeMedical      ClaimType = "medical"
	ClaimTypeHistorical   ClaimType = "historical"
	ClaimTypeStatistical  ClaimType = "statistical"
	ClaimTypePolitical    ClaimType = "political"
	ClaimTypeFinancial    ClaimType = "financial"
	ClaimTypeGeographic   ClaimType = "geographic"
	ClaimTypeTechnical    ClaimType = "technical"
	ClaimTypeBiographical ClaimType = "biographical"
	ClaimTypeGeneral      ClaimType = "general"
)

// AllClaimTypes lists the domain categories in tie-break order. General is last.
var AllClaimTypes = []ClaimType{
	ClaimTypeScientific,
	ClaimTypeMedical,
	ClaimTypeHistorical,
	ClaimTypeStatistical,
	ClaimTypePolitical,
	ClaimTypeFinancial,
	ClaimTypeGeographic,
	ClaimTypeTechnical,
	ClaimTypeBiographical,
	ClaimTypeGeneral,
}

// ParseClaimType converts a string to a ClaimType, returning false for unknown values
func ParseClaimType(s string) (ClaimType, bool) {
	for _, t := range AllClaimTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// HasType reports whether t is among the claim's categories
func (c Claim) HasType(t ClaimType) bool {
	for _, ct := range c.Types {
		if ct == t {
			return true
		}
	}
	return false
}
