package model

import "time"

// ProviderProfile is the adaptive-learning state of one provider
type ProviderProfile struct {
	ProviderID         string       `json:"provider_id"`
	// Claim types learned from feedback, sorted
	Specializations    []ClaimType  `json:"specializations,omitempty"`
	HistoricalAccuracy float64      `json:"historical_accuracy"` // EMA in [0,1]
	Latency            LatencyStats `json:"latency_stats"`
	Feedback           int          `json:"feedback_count"`
	Version            uint64       `json:"version"` // Incremented on every write to this profile
	UpdatedAt          time.Time    `json:"updated_at"`
}

// LatencyStats tracks observed provider latency
type LatencyStats struct {
	Count    int64         `json:"count"`
	Mean     time.Duration `json:"mean"` // Exponential moving average
	Last     time.Duration `json:"last"`
	Failures int64         `json:"failures"`
}

// ProfileSnapshot is an immutable view of all provider profiles
type ProfileSnapshot struct {
	Version  uint64                     `json:"version"` // Monotonic, bumped on any accuracy update
	Profiles map[string]ProviderProfile `json:"profiles"`
}

// Accuracy returns the historical accuracy for a provider, or fallback if unknown
func (s *ProfileSnapshot) Accuracy(providerID string, fallback float64) float64 {
	if s == nil {
		return fallback
	}
	if p, ok := s.Profiles[providerID]; ok {
		return p.HistoricalAccuracy
	}
	return fallback
}

// Learned reports whether feedback taught the provider any of types
func (s *ProfileSnapshot) Learned(providerID string, types ...ClaimType) bool {
	if s == nil {
		return false
	}
	for _, have := range s.Profiles[providerID].Specializations {
		for _, t := range types {
			if have == t {
				return true
			}
		}
	}
	return false
}

// MeanLatency returns the observed mean latency for a provider, zero if unknown
func (s *ProfileSnapshot) MeanLatency(providerID string) time.Duration {
	if s == nil {
		return 0
	}
	return s.Profiles[providerID].Latency.Mean
}
