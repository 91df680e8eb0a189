package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/collector"
	"github.com/ppiankov/veracity/internal/consensus"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/graph"
	"github.com/ppiankov/veracity/internal/learning"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/observe"
	"github.com/ppiankov/veracity/internal/providers"
	"github.com/ppiankov/veracity/internal/router"
	"github.com/ppiankov/veracity/internal/validate"
	"github.com/ppiankov/veracity/internal/worker"
)

const tracerName = "github.com/ppiankov/veracity/internal/pipeline"

// Options are the collaborators injected into a pipeline
type Options struct {
	Registry *providers.Registry // Evidence adapters
	Store    cache.Store         // Backs verdicts, profiles and records; in-memory when nil
	Sink     observe.Sink        // Per-request events; discarded when nil
	Logger   *zap.Logger
	Now      func() time.Time
	NewID    func() string // Claim ids; random uuids when nil
}

// Pipeline orchestrates decomposition, routing, collection, graph
// building, consensus, caching and learning for each request
type Pipeline struct {
	cfg        *model.Config
	decomposer *extract.Decomposer
	router     *router.Router
	collector  *collector.Collector
	builder    *graph.Builder
	consensus  *consensus.Engine
	profiles   *learning.Profiles
	records    *learning.Records
	verdicts   *cache.VerdictCache // nil when caching is disabled
	store      cache.Store
	sink       observe.Sink
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	flight     singleflight.Group
}

// New creates a pipeline. The configuration must pass Validate; a registry
// without adapters is accepted here and reported per request.
func New(ctx context.Context, cfg *model.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	store := opts.Store
	if store == nil {
		store = cache.NewMemoryStore(10 * time.Minute)
	}
	sink := opts.Sink
	if sink == nil {
		sink = observe.Nop{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = providers.NewRegistry()
	}

	decomposer := extract.NewDecomposer()
	if opts.NewID != nil || opts.Now != nil {
		newID := opts.NewID
		if newID == nil {
			newID = uuid.NewString
		}
		decomposer = decomposer.WithClock(newID, now)
	}

	profiles, err := learning.NewProfiles(ctx, store, cfg.Learning, logger.Named("learning"))
	if err != nil {
		return nil, fmt.Errorf("load provider profiles: %w", err)
	}

	p := &Pipeline{
		cfg:        cfg,
		decomposer: decomposer,
		router:     router.New(registry, cfg),
		collector:  collector.New(validate.NewAuthorityClassifier(&cfg.Authority), cfg.Consensus.MinEvidence, logger.Named("collector")),
		builder:    graph.NewBuilder(cfg.Graph),
		consensus:  consensus.New(cfg.Consensus, cfg.Learning.InitialAccuracy, logger.Named("consensus")),
		profiles:   profiles,
		records:    learning.NewRecords(store, cfg.Cache.TTL),
		store:      store,
		sink:       sink,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		now:        now,
	}
	if cfg.Cache.Enabled {
		p.verdicts = cache.NewVerdictCache(store, cfg.Cache.TTL, logger.Named("cache"))
	}
	if registry.Len() > 0 && !p.router.HasFallback() {
		logger.Warn("no general-purpose provider configured, claims outside every specialization get no fallback",
			zap.Int("providers", registry.Len()))
	}
	return p, nil
}

// Profiles exposes the learning state (maintenance jobs, inspection)
func (p *Pipeline) Profiles() *learning.Profiles {
	return p.profiles
}

// Store returns the persistence backend
func (p *Pipeline) Store() cache.Store {
	return p.store
}

// Config returns the effective configuration
func (p *Pipeline) Config() *model.Config {
	return p.cfg
}

// ParseDetail resolves a detail level. An empty level means standard.
func ParseDetail(s string) (model.DetailLevel, error) {
	switch d := model.DetailLevel(s); d {
	case "":
		return model.DetailStandard, nil
	case model.DetailSummary, model.DetailStandard, model.DetailFull:
		return d, nil
	}
	return "", &model.ValidationError{Field: "detail", Reason: fmt.Sprintf("unknown detail level %q", s)}
}

// Analyze decomposes a claim without verifying it
func (p *Pipeline) Analyze(text string) (*model.Claim, error) {
	return p.decomposer.Decompose(text)
}

// outcome is one computed or cached verification
type outcome struct {
	result           *model.VerificationResult
	cacheHit         bool
	failures         map[string]int
	deadlineExceeded bool
}

// Verify runs a claim through the full pipeline. Concurrent identical
// requests share one computation that runs to the strategy deadline even
// if the caller that started it leaves. Besides ValidationError and
// ConfigurationError, only the caller's own context error is returned;
// every other failure degrades the result.
func (p *Pipeline) Verify(ctx context.Context, text string, strategy model.Strategy, detail model.DetailLevel) (*model.VerificationResult, error) {
	start := p.now()

	strategy, _, err := p.router.StrategyConfig(strategy)
	if err != nil {
		return nil, err
	}
	if detail, err = ParseDetail(string(detail)); err != nil {
		return nil, err
	}
	claim, err := p.decomposer.Decompose(text)
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Verify",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("veracity.claim_id", claim.ID),
			attribute.String("veracity.strategy", string(strategy)),
			attribute.Int("veracity.sub_claims", len(claim.SubClaims)),
		))
	defer span.End()

	snapshot := p.profiles.Snapshot()
	key := cache.VerdictKey(claim.Fingerprint, snapshot.Version, strategy)
	// The shared computation must not inherit one caller's cancellation:
	// the collector bounds it by the strategy deadline instead
	shared := context.WithoutCancel(ctx)
	ch := p.flight.DoChan(key, func() (interface{}, error) {
		if cached, ok := p.verdicts.Get(shared, claim.Fingerprint, snapshot.Version, strategy); ok {
			p.logger.Debug("verdict cache hit", zap.String("fingerprint", claim.Fingerprint), zap.String("strategy", string(strategy)))
			return &outcome{result: cached, cacheHit: true}, nil
		}
		return p.compute(shared, claim, strategy, snapshot)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		err := ctx.Err()
		p.logger.Debug("caller left before verification finished", zap.String("claim_id", claim.ID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		return nil, res.Err
	}
	out := res.Val.(*outcome)

	result := trim(*out.result, detail)
	result.Cached = out.cacheHit
	span.SetAttributes(
		attribute.String("veracity.verdict", string(result.Verdict)),
		attribute.Bool("veracity.cache_hit", out.cacheHit),
		attribute.Bool("veracity.shared", res.Shared),
	)

	p.sink.Record(ctx, observe.Event{
		ClaimID:          result.ClaimID,
		Strategy:         strategy,
		Verdict:          result.Verdict,
		Confidence:       result.Confidence,
		Latency:          p.now().Sub(start),
		CacheHit:         out.cacheHit,
		EvidenceCount:    result.EvidenceCount,
		Failures:         out.failures,
		DeadlineExceeded: out.deadlineExceeded,
	})
	return &result, nil
}

// compute performs one uncached verification and persists its outputs
func (p *Pipeline) compute(ctx context.Context, claim *model.Claim, strategy model.Strategy, snapshot *model.ProfileSnapshot) (*outcome, error) {
	plan, err := p.router.Plan(claim, strategy, snapshot)
	if err != nil {
		return nil, err
	}

	cctx, span := p.tracer.Start(ctx, "pipeline.collect",
		trace.WithAttributes(attribute.StringSlice("veracity.providers", plan.ProviderIDs())))
	coll := p.collector.Collect(cctx, plan)
	span.SetAttributes(attribute.Int("veracity.items", coll.ItemCount()))
	span.End()

	_, span = p.tracer.Start(ctx, "pipeline.consensus")
	graphs := make([]*model.EvidenceGraph, len(coll.SubClaims))
	for i, sc := range coll.SubClaims {
		graphs[i] = p.builder.Build(sc.SubClaim, sc.Items)
	}

	result, err := p.consensus.Evaluate(*claim, graphs, snapshot)
	if err != nil {
		var defect *model.ConsensusComputationError
		if !errors.As(err, &defect) {
			span.End()
			return nil, err
		}
		p.logger.Error("consensus computation failed", zap.String("claim_id", claim.ID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "consensus defect")
		if result, err = p.consensus.Evaluate(*claim, nil, snapshot); err != nil {
			span.End()
			return nil, err
		}
		result.Warnings = append(result.Warnings, model.Warning{
			Type:     model.WarningConsensusError,
			Severity: model.SeverityCritical,
			Message:  "consensus computation failed; the evidence could not be scored",
			Data:     map[string]interface{}{"layer": defect.Layer},
		})
	}
	span.End()

	result.Strategy = strategy
	result.CreatedAt = p.now().UTC()

	failures := failureCounts(coll)
	if len(failures) > 0 {
		result.Warnings = append(result.Warnings, model.Warning{
			Type:     model.WarningProviderFailures,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("%d provider call(s) failed and contributed no evidence", total(failures)),
			Data:     failureData(coll),
		})
	}
	if coll.DeadlineExceeded {
		result.Warnings = append(result.Warnings, model.Warning{
			Type:     model.WarningDeadlineExceeded,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("collection stopped at the %s deadline; late providers were abandoned", plan.Deadline),
		})
		p.logger.Warn("collection deadline exceeded", zap.String("claim_id", claim.ID), zap.Duration("deadline", plan.Deadline))
	}

	p.persist(ctx, claim, result, graphs, coll)

	return &outcome{result: result, failures: failures, deadlineExceeded: coll.DeadlineExceeded}, nil
}

// persist writes the verdict cache entry, the feedback record and the
// latency samples. Store failures are logged and never fail the request.
func (p *Pipeline) persist(ctx context.Context, claim *model.Claim, result *model.VerificationResult, graphs []*model.EvidenceGraph, coll *collector.Collection) {
	// Results cut short by the deadline are not cached so the next request
	// can collect the evidence that arrived late
	if !coll.DeadlineExceeded {
		if err := p.verdicts.Put(ctx, result); err != nil {
			p.logger.Warn("verdict cache write failed", zap.String("claim_id", claim.ID), zap.Error(err))
		}
	}

	rec := &learning.Record{
		ClaimID:     claim.ID,
		Fingerprint: claim.Fingerprint,
		Verdict:     result.Verdict,
		Types:       claim.Types,
		Stances:     learning.StancesFromGraphs(graphs),
		CreatedAt:   result.CreatedAt,
	}
	if err := p.records.Save(ctx, rec); err != nil {
		p.logger.Warn("verification record write failed", zap.String("claim_id", claim.ID), zap.Error(err))
	}

	samples := make([]learning.LatencySample, 0, len(coll.Observations))
	for _, o := range coll.Observations {
		samples = append(samples, learning.LatencySample{ProviderID: o.ProviderID, Latency: o.Latency, Failed: o.Failed})
	}
	if len(samples) > 0 {
		if err := p.profiles.RecordLatency(ctx, samples); err != nil {
			p.logger.Warn("latency update failed", zap.Error(err))
		}
	}
}

func failureCounts(coll *collector.Collection) map[string]int {
	byKind := coll.FailuresByKind()
	if len(byKind) == 0 {
		return nil
	}
	out := make(map[string]int, len(byKind))
	for kind, n := range byKind {
		out[string(kind)] = n
	}
	return out
}

// failureData lists failed providers per kind, sorted for stable output
func failureData(coll *collector.Collection) map[string]interface{} {
	byKind := make(map[string][]string)
	for _, sc := range coll.SubClaims {
		for _, f := range sc.Failures {
			byKind[string(f.Kind)] = append(byKind[string(f.Kind)], f.ProviderID)
		}
	}
	out := make(map[string]interface{}, len(byKind))
	for kind, ids := range byKind {
		sort.Strings(ids)
		out[kind] = ids
	}
	return out
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// trim applies a detail level to a copy of the result
func trim(r model.VerificationResult, detail model.DetailLevel) model.VerificationResult {
	switch detail {
	case model.DetailSummary:
		r.EvidenceFor = nil
		r.EvidenceAgainst = nil
		r.Alternatives = nil
		r.SubClaims = nil
	case model.DetailStandard:
		if len(r.SubClaims) > 1 {
			subs := make([]model.SubClaimScore, len(r.SubClaims))
			for i, s := range r.SubClaims {
				s.Layers = nil
				subs[i] = s
			}
			r.SubClaims = subs
		} else {
			r.SubClaims = nil
		}
	}
	return r
}

// BatchVerify verifies claims concurrently. Each entry behaves like a
// standalone Verify call; results come back in input order.
func (p *Pipeline) BatchVerify(ctx context.Context, texts []string, strategy model.Strategy, detail model.DetailLevel) ([]*worker.ClaimResult, error) {
	if limit := p.cfg.Batch.MaxSize; limit > 0 && len(texts) > limit {
		return nil, &model.ValidationError{Field: "claims", Reason: fmt.Sprintf("batch of %d exceeds the maximum of %d", len(texts), limit)}
	}
	if _, _, err := p.router.StrategyConfig(strategy); err != nil {
		return nil, err
	}
	if _, err := ParseDetail(string(detail)); err != nil {
		return nil, err
	}

	workers := p.cfg.Batch.Workers
	if workers <= 0 {
		workers = 1
	}
	verify := worker.VerifierFunc(func(ctx context.Context, text string) (*model.VerificationResult, error) {
		return p.Verify(ctx, text, strategy, detail)
	})
	return worker.NewBatchProcessor(verify, workers).ProcessClaims(ctx, texts), nil
}

// SubmitFeedback attributes an asserted verdict to the providers that
// contributed to a past verification and returns the new profile version
func (p *Pipeline) SubmitFeedback(ctx context.Context, claimID string, verdict model.Verdict) (uint64, error) {
	if claimID == "" {
		return 0, &model.ValidationError{Field: "claim_id", Reason: "claim id is required"}
	}
	if _, ok := model.ParseVerdict(string(verdict)); !ok {
		return 0, &model.ValidationError{Field: "verdict", Reason: fmt.Sprintf("unknown verdict %q", verdict)}
	}

	rec, err := p.records.Load(ctx, claimID)
	if err != nil {
		return 0, err
	}
	version, err := p.profiles.ApplyFeedback(ctx, rec.Stances, verdict, rec.Types...)
	if err != nil {
		return 0, err
	}
	p.logger.Info("feedback applied",
		zap.String("claim_id", claimID),
		zap.String("verdict", string(verdict)),
		zap.Int("providers", len(rec.Stances)),
		zap.Uint64("profile_version", version))
	return version, nil
}
