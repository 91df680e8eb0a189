package model

import "fmt"

// ValidationError reports malformed caller input. It is always returned to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports a setup that cannot serve any request
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// InsufficientEvidenceError marks a sub-claim with fewer items than required.
// It is not a failure: it maps to an UNVERIFIABLE verdict with warnings.
type InsufficientEvidenceError struct {
	SubClaim int
	Count    int
	Minimum  int
}

func (e *InsufficientEvidenceError) Error() string {
	return fmt.Sprintf("insufficient evidence for sub-claim %d: %d item(s), need %d", e.SubClaim, e.Count, e.Minimum)
}

// ConsensusComputationError signals a defect in consensus arithmetic
type ConsensusComputationError struct {
	Layer  int
	Reason string
}

func (e *ConsensusComputationError) Error() string {
	return fmt.Sprintf("consensus layer %d: %s", e.Layer, e.Reason)
}
