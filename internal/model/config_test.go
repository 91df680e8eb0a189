package model

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if sum := cfg.Consensus.Weights.Sum(); math.Abs(sum-1) > 1e-9 {
		t.Errorf("expected weights to sum to 1, got %f", sum)
	}
	for _, s := range []Strategy{StrategySpeed, StrategyBalanced, StrategyAccuracy, StrategyComprehensive} {
		if _, ok := cfg.Strategies[s]; !ok {
			t.Errorf("missing strategy %s", s)
		}
	}
}

func TestLayerWeights_Slice(t *testing.T) {
	w := LayerWeights{AIAgreement: 1, SourceAuthority: 2, EvidenceStrength: 3, Temporal: 4, CrossReference: 5, Calibration: 6, Synthesis: 7}
	got := w.Slice()
	for i, v := range got {
		if v != float64(i+1) {
			t.Errorf("layer %d: expected %d, got %f", i+1, i+1, v)
		}
	}
	if w.Sum() != 28 {
		t.Errorf("expected sum 28, got %f", w.Sum())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		desc   string
		mutate func(c *Config)
	}{
		{desc: "weights off by more than epsilon", mutate: func(c *Config) { c.Consensus.Weights.Synthesis += 0.01 }},
		{desc: "negative weight", mutate: func(c *Config) {
			c.Consensus.Weights.Synthesis = -0.05
			c.Consensus.Weights.Calibration = 0.15
		}},
		{desc: "thresholds not descending", mutate: func(c *Config) { c.Consensus.Thresholds.Disputed = 0.6 }},
		{desc: "threshold above one", mutate: func(c *Config) { c.Consensus.Thresholds.True = 1.2 }},
		{desc: "negative min evidence", mutate: func(c *Config) { c.Consensus.MinEvidence = -1 }},
		{desc: "damping out of range", mutate: func(c *Config) { c.Graph.Damping = 1 }},
		{desc: "no iterations", mutate: func(c *Config) { c.Graph.MaxIterations = 0 }},
		{desc: "zero strategy deadline", mutate: func(c *Config) {
			s := c.Strategies[StrategySpeed]
			s.Deadline = 0
			c.Strategies[StrategySpeed] = s
		}},
		{desc: "learning alpha zero", mutate: func(c *Config) { c.Learning.Alpha = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestParseVerdict(t *testing.T) {
	for _, v := range Verdicts() {
		got, ok := ParseVerdict(string(v))
		if !ok || got != v {
			t.Errorf("ParseVerdict(%q) = %q, %v", v, got, ok)
		}
	}
	if _, ok := ParseVerdict("true"); ok {
		t.Error("verdicts are case-sensitive")
	}
}

func TestVerdict_Target(t *testing.T) {
	tests := []struct {
		desc    string
		verdict Verdict
		want    float64
		ok      bool
	}{
		{desc: "true", verdict: VerdictTrue, want: 1, ok: true},
		{desc: "mostly true", verdict: VerdictMostlyTrue, want: 1, ok: true},
		{desc: "disputed", verdict: VerdictDisputed, want: 0.5, ok: true},
		{desc: "false", verdict: VerdictFalse, want: 0, ok: true},
		{desc: "unverifiable has no target", verdict: VerdictUnverifiable, want: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, ok := tt.verdict.Target()
			if got != tt.want || ok != tt.ok {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}
