package model

import (
	"fmt"
	"math"
	"time"
)

// Config holds all engine configuration
type Config struct {
	Consensus    ConsensusConfig             `yaml:"consensus" mapstructure:"consensus"`
	Graph        GraphConfig                 `yaml:"graph" mapstructure:"graph"`
	Strategies   map[Strategy]StrategyConfig `yaml:"strategies" mapstructure:"strategies"`
	Cache        CacheConfig                 `yaml:"cache" mapstructure:"cache"`
	Learning     LearningConfig              `yaml:"learning" mapstructure:"learning"`
	Authority    AuthorityConfig             `yaml:"authority" mapstructure:"authority"`
	Providers    []ProviderConfig            `yaml:"providers" mapstructure:"providers"`
	Batch        BatchConfig                 `yaml:"batch" mapstructure:"batch"`
	HTTP         HTTPConfig                  `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitConfig             `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Logging      LoggingConfig               `yaml:"logging" mapstructure:"logging"`
}

// ConsensusConfig tunes the seven-layer consensus computation
type ConsensusConfig struct {
	Weights                LayerWeights  `yaml:"weights" mapstructure:"weights"`
	Thresholds             Thresholds    `yaml:"thresholds" mapstructure:"thresholds"`
	MinEvidence            int           `yaml:"min_evidence" mapstructure:"min_evidence"`
	CalibrationCeiling     float64       `yaml:"calibration_ceiling" mapstructure:"calibration_ceiling"`
	CalibrationFloor       float64       `yaml:"calibration_floor" mapstructure:"calibration_floor"`
	PriorStrength          float64       `yaml:"prior_strength" mapstructure:"prior_strength"`
	UnverifiableConfidence float64       `yaml:"unverifiable_confidence" mapstructure:"unverifiable_confidence"`
	StaleAfter             time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
}

// LayerWeights are the per-layer weights. They must sum to 1.0.
type LayerWeights struct {
	AIAgreement      float64 `yaml:"ai_agreement" mapstructure:"ai_agreement"`
	SourceAuthority  float64 `yaml:"source_authority" mapstructure:"source_authority"`
	EvidenceStrength float64 `yaml:"evidence_strength" mapstructure:"evidence_strength"`
	Temporal         float64 `yaml:"temporal" mapstructure:"temporal"`
	CrossReference   float64 `yaml:"cross_reference" mapstructure:"cross_reference"`
	Calibration      float64 `yaml:"calibration" mapstructure:"calibration"`
	Synthesis        float64 `yaml:"synthesis" mapstructure:"synthesis"`
}

// Slice returns the weights in layer order (L1..L7)
func (w LayerWeights) Slice() [7]float64 {
	return [7]float64{w.AIAgreement, w.SourceAuthority, w.EvidenceStrength, w.Temporal, w.CrossReference, w.Calibration, w.Synthesis}
}

// Sum returns the total of all layer weights
func (w LayerWeights) Sum() float64 {
	total := 0.0
	for _, v := range w.Slice() {
		total += v
	}
	return total
}

// Thresholds are the lower bounds of each verdict band
type Thresholds struct {
	True         float64 `yaml:"true" mapstructure:"true"`
	MostlyTrue   float64 `yaml:"mostly_true" mapstructure:"mostly_true"`
	NeedsContext float64 `yaml:"needs_context" mapstructure:"needs_context"`
	Disputed     float64 `yaml:"disputed" mapstructure:"disputed"`
	Misleading   float64 `yaml:"misleading" mapstructure:"misleading"`
}

// GraphConfig tunes evidence graph construction and trust propagation
type GraphConfig struct {
	Damping        float64 `yaml:"damping" mapstructure:"damping"`
	MaxIterations  int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Epsilon        float64 `yaml:"epsilon" mapstructure:"epsilon"`
	RelevanceFloor float64 `yaml:"relevance_floor" mapstructure:"relevance_floor"`
}

// StrategyConfig is the routing and deadline profile of one strategy
type StrategyConfig struct {
	CallTimeout   time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	Deadline      time.Duration `yaml:"deadline" mapstructure:"deadline"`
	MaxProviders  int           `yaml:"max_providers" mapstructure:"max_providers"` // 0 = uncapped
	LatencyWeight float64       `yaml:"latency_weight" mapstructure:"latency_weight"`
	MaxResults    int           `yaml:"max_results" mapstructure:"max_results"`
}

// CacheConfig selects the persistence backend for verdicts and profiles
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Backend  string        `yaml:"backend" mapstructure:"backend"` // memory, disk, layered, badger, redis, sqlite
	Path     string        `yaml:"path" mapstructure:"path"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
}

// LearningConfig tunes provider accuracy updates
type LearningConfig struct {
	Alpha           float64 `yaml:"alpha" mapstructure:"alpha"`
	InitialAccuracy float64 `yaml:"initial_accuracy" mapstructure:"initial_accuracy"`
	LatencyAlpha    float64 `yaml:"latency_alpha" mapstructure:"latency_alpha"`
}

// AuthorityConfig maps sources to credibility tiers
type AuthorityConfig struct {
	DomainMap            map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	AuthoritativeDomains []string          `yaml:"authoritative_domains" mapstructure:"authoritative_domains"`
	ReputableDomains     []string          `yaml:"reputable_domains" mapstructure:"reputable_domains"`
	GeneralDomains       []string          `yaml:"general_domains" mapstructure:"general_domains"`
	UncertainDomains     []string          `yaml:"uncertain_domains" mapstructure:"uncertain_domains"`
	PathPatterns         []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// ProviderConfig configures one evidence adapter
type ProviderConfig struct {
	ID                string   `yaml:"id" mapstructure:"id"`
	Kind              string   `yaml:"kind" mapstructure:"kind"` // openai, anthropic, compat, ollama, factcheck, wikipedia, search
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	Model             string   `yaml:"model,omitempty" mapstructure:"model"`
	APIKey            string   `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv         string   `yaml:"api_key_env,omitempty" mapstructure:"api_key_env"`
	BaseURL           string   `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Language          string   `yaml:"language,omitempty" mapstructure:"language"`
	Specializations   []string `yaml:"specializations,omitempty" mapstructure:"specializations"`
	General           bool     `yaml:"general" mapstructure:"general"`
	RequestsPerSecond float64  `yaml:"requests_per_second,omitempty" mapstructure:"requests_per_second"`
	Burst             int      `yaml:"burst,omitempty" mapstructure:"burst"`
	FetchPages        bool     `yaml:"fetch_pages,omitempty" mapstructure:"fetch_pages"`
}

// BatchConfig bounds batch verification
type BatchConfig struct {
	MaxSize int `yaml:"max_size" mapstructure:"max_size"`
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// HTTPConfig configures outbound HTTP used by adapters
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// RateLimitConfig is the default per-provider request budget
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Consensus: ConsensusConfig{
			Weights: LayerWeights{
				AIAgreement:      0.35,
				SourceAuthority:  0.25,
				EvidenceStrength: 0.15,
				Temporal:         0.05,
				CrossReference:   0.10,
				Calibration:      0.05,
				Synthesis:        0.05,
			},
			Thresholds: Thresholds{
				True:         0.85,
				MostlyTrue:   0.70,
				NeedsContext: 0.55,
				Disputed:     0.45,
				Misleading:   0.30,
			},
			MinEvidence:            1,
			CalibrationCeiling:     0.95,
			CalibrationFloor:       0.05,
			PriorStrength:          2,
			UnverifiableConfidence: 0.2,
			StaleAfter:             365 * 24 * time.Hour,
		},
		Graph: GraphConfig{
			Damping:        0.85,
			MaxIterations:  50,
			Epsilon:        1e-6,
			RelevanceFloor: 0.15,
		},
		Strategies: map[Strategy]StrategyConfig{
			StrategySpeed:         {CallTimeout: 3 * time.Second, Deadline: 6 * time.Second, MaxProviders: 3, LatencyWeight: 0.5, MaxResults: 3},
			StrategyBalanced:      {CallTimeout: 8 * time.Second, Deadline: 20 * time.Second, MaxProviders: 5, LatencyWeight: 0.2, MaxResults: 5},
			StrategyAccuracy:      {CallTimeout: 15 * time.Second, Deadline: 40 * time.Second, MaxProviders: 8, LatencyWeight: 0, MaxResults: 8},
			StrategyComprehensive: {CallTimeout: 20 * time.Second, Deadline: 60 * time.Second, MaxProviders: 0, LatencyWeight: 0, MaxResults: 10},
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
			Backend: "memory",
		},
		Learning: LearningConfig{
			Alpha:           0.1,
			InitialAccuracy: 0.7,
			LatencyAlpha:    0.2,
		},
		Authority: AuthorityConfig{
			AuthoritativeDomains: []string{
				"nature.com", "science.org", "nejm.org", "thelancet.com", "nasa.gov", "cdc.gov",
				"who.int", "nih.gov", "usgs.gov", "noaa.gov", "semanticscholar.org", "arxiv.org",
				"snopes.com", "politifact.com", "factcheck.org", "fullfact.org", "apnews.com", "reuters.com",
			},
			ReputableDomains: []string{
				"bbc.com", "bbc.co.uk", "nytimes.com", "washingtonpost.com", "theguardian.com", "npr.org",
				"pbs.org", "britannica.com", "nationalgeographic.com", "smithsonianmag.com",
				"stanford.edu", "mit.edu", "harvard.edu", "ox.ac.uk", "cambridge.org",
			},
			GeneralDomains: []string{
				"wikipedia.org", "wikidata.org", "dbpedia.org", "wolframalpha.com", "khanacademy.org",
			},
			UncertainDomains: []string{
				"twitter.com", "x.com", "facebook.com", "reddit.com", "quora.com", "tiktok.com",
			},
			PathPatterns: []PathPattern{
				{Pattern: `^/(doi|abs|pmc)/`, Tier: "authoritative"},
			},
		},
		Providers: []ProviderConfig{
			{ID: "wikipedia", Kind: "wikipedia", Enabled: true, General: true, Language: "en"},
			{ID: "google-factcheck", Kind: "factcheck", Enabled: true, APIKeyEnv: "GOOGLE_FACTCHECK_API_KEY",
				Specializations: []string{"political", "medical", "statistical", "general"}},
			{ID: "openai", Kind: "openai", Enabled: true, Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", General: true},
			{ID: "anthropic", Kind: "anthropic", Enabled: true, Model: "claude-3-5-haiku-latest", APIKeyEnv: "ANTHROPIC_API_KEY", General: true},
			{ID: "ollama", Kind: "ollama", Enabled: false, Model: "llama3.1", BaseURL: "http://localhost:11434"},
			{ID: "search", Kind: "search", Enabled: false, APIKeyEnv: "VERACITY_SEARCH_API_KEY", FetchPages: true},
		},
		Batch: BatchConfig{
			MaxSize: 25,
			Workers: 4,
		},
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "Veracity/0.1 (+https://github.com/ppiankov/veracity)",
			MaxBodyBytes:  1_000_000,
			RespectRobots: true,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks invariants that would make every request fail or drift
func (c *Config) Validate() error {
	if sum := c.Consensus.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		return &ConfigurationError{Reason: fmt.Sprintf("layer weights sum to %.4f, want 1.0", sum)}
	}
	for i, w := range c.Consensus.Weights.Slice() {
		if w < 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("layer %d weight is negative", i+1)}
		}
	}
	t := c.Consensus.Thresholds
	bands := []float64{t.True, t.MostlyTrue, t.NeedsContext, t.Disputed, t.Misleading}
	for i := 1; i < len(bands); i++ {
		if bands[i] >= bands[i-1] {
			return &ConfigurationError{Reason: "verdict thresholds must be strictly descending"}
		}
	}
	if t.True > 1 || t.Misleading < 0 {
		return &ConfigurationError{Reason: "verdict thresholds must lie in [0,1]"}
	}
	if c.Consensus.MinEvidence < 0 {
		return &ConfigurationError{Reason: "min_evidence must not be negative"}
	}
	if c.Graph.Damping <= 0 || c.Graph.Damping >= 1 {
		return &ConfigurationError{Reason: "graph damping must be in (0,1)"}
	}
	if c.Graph.MaxIterations <= 0 {
		return &ConfigurationError{Reason: "graph max_iterations must be positive"}
	}
	for name, s := range c.Strategies {
		if s.CallTimeout <= 0 || s.Deadline <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("strategy %s needs positive timeouts", name)}
		}
	}
	if c.Learning.Alpha <= 0 || c.Learning.Alpha > 1 {
		return &ConfigurationError{Reason: "learning alpha must be in (0,1]"}
	}
	return nil
}
