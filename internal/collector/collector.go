package collector

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/providers"
	"github.com/ppiankov/veracity/internal/router"
)

// TierClassifier assigns a credibility tier to items that arrive without one
type TierClassifier interface {
	ClassifyPublisher(rawURL, site string) model.CredibilityTier
}

// Failure is one provider call that yielded no evidence
type Failure struct {
	ProviderID string
	Kind       providers.ErrorKind
	Err        error
}

// Observation is the latency outcome of one provider call, fed to learning
type Observation struct {
	ProviderID string
	Latency    time.Duration
	Failed     bool
}

// SubClaimEvidence is the pooled evidence for one sub-claim
type SubClaimEvidence struct {
	SubClaim     model.SubClaim
	Items        []model.EvidenceItem
	Failures     []Failure
	Insufficient bool // fewer items than the configured minimum
}

// Collection is the outcome of one collection phase
type Collection struct {
	SubClaims        []SubClaimEvidence
	Observations     []Observation
	DeadlineExceeded bool
}

// ItemCount returns the total number of items across sub-claims
func (c *Collection) ItemCount() int {
	n := 0
	for _, sc := range c.SubClaims {
		n += len(sc.Items)
	}
	return n
}

// FailuresByKind counts provider failures per error kind
func (c *Collection) FailuresByKind() map[providers.ErrorKind]int {
	out := make(map[providers.ErrorKind]int)
	for _, sc := range c.SubClaims {
		for _, f := range sc.Failures {
			out[f.Kind]++
		}
	}
	return out
}

// Collector runs the provider calls of a plan concurrently
type Collector struct {
	tiers       TierClassifier
	minEvidence int
	logger      *zap.Logger
}

// New creates a collector
func New(tiers TierClassifier, minEvidence int, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{tiers: tiers, minEvidence: minEvidence, logger: logger}
}

type call struct {
	subIndex int
	adapter  providers.Adapter
}

type outcome struct {
	call    int
	items   []model.EvidenceItem
	err     error
	latency time.Duration
}

// Collect executes every selected provider call. Each call runs under the
// plan's per-call timeout and all of them under the overall deadline.
// Calls still running at the deadline are abandoned; evidence that already
// arrived is kept. Provider failures never fail the collection.
func (c *Collector) Collect(ctx context.Context, plan *router.Plan) *Collection {
	var calls []call
	for i, sc := range plan.SubClaims {
		for _, sel := range sc.Providers {
			calls = append(calls, call{subIndex: i, adapter: sel.Adapter})
		}
	}

	overall := ctx
	cancel := context.CancelFunc(func() {})
	if plan.Deadline > 0 {
		overall, cancel = context.WithTimeout(ctx, plan.Deadline)
	}
	defer cancel()

	outcomes := make(chan outcome, len(calls))
	g, gctx := errgroup.WithContext(overall)
	for i, cl := range calls {
		i, cl := i, cl
		sub := plan.SubClaims[cl.subIndex].SubClaim
		g.Go(func() error {
			callCtx := gctx
			if plan.CallTimeout > 0 {
				var callCancel context.CancelFunc
				callCtx, callCancel = context.WithTimeout(gctx, plan.CallTimeout)
				defer callCancel()
			}

			start := time.Now()
			items, err := cl.adapter.Query(callCtx, sub, plan.MaxResults)
			outcomes <- outcome{call: i, items: items, err: err, latency: time.Since(start)}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	received := make([]*outcome, len(calls))
	collect := func(o outcome) { received[o.call] = &o }

wait:
	for {
		select {
		case o := <-outcomes:
			collect(o)
		case <-done:
			break wait
		case <-overall.Done():
			break wait
		}
	}
	// Keep whatever finished before we stopped listening
	for drained := false; !drained; {
		select {
		case o := <-outcomes:
			collect(o)
		default:
			drained = true
		}
	}

	return c.merge(plan, calls, received)
}

// merge runs on the joining goroutine only
func (c *Collector) merge(plan *router.Plan, calls []call, received []*outcome) *Collection {
	result := &Collection{SubClaims: make([]SubClaimEvidence, len(plan.SubClaims))}
	for i, sc := range plan.SubClaims {
		result.SubClaims[i].SubClaim = sc.SubClaim
	}

	for i, cl := range calls {
		id := cl.adapter.ID()
		target := &result.SubClaims[cl.subIndex]
		o := received[i]

		if o == nil {
			result.DeadlineExceeded = true
			err := providers.NewError(id, providers.KindTimeout, context.DeadlineExceeded)
			target.Failures = append(target.Failures, Failure{ProviderID: id, Kind: err.Kind, Err: err})
			result.Observations = append(result.Observations, Observation{ProviderID: id, Latency: plan.Deadline, Failed: true})
			c.logger.Warn("Provider abandoned at deadline", zap.String("provider", id))
			continue
		}

		result.Observations = append(result.Observations, Observation{ProviderID: id, Latency: o.latency, Failed: o.err != nil})

		if o.err != nil {
			pe := providers.Classify(id, o.err)
			target.Failures = append(target.Failures, Failure{ProviderID: id, Kind: pe.Kind, Err: pe})
			c.logger.Warn("Provider call failed",
				zap.String("provider", id),
				zap.String("kind", string(pe.Kind)),
				zap.Error(pe.Err))
			continue
		}

		for _, item := range o.items {
			target.Items = append(target.Items, c.normalize(id, cl.adapter.Category(), item))
		}
	}

	for i := range result.SubClaims {
		sc := &result.SubClaims[i]
		sortFailures(sc.Failures)
		sc.Insufficient = len(sc.Items) < c.minEvidence
	}

	sort.SliceStable(result.Observations, func(i, j int) bool {
		return result.Observations[i].ProviderID < result.Observations[j].ProviderID
	})

	return result
}

// normalize fills fields adapters may leave empty
func (c *Collector) normalize(providerID string, category model.ProviderCategory, item model.EvidenceItem) model.EvidenceItem {
	if item.ProviderID == "" {
		item.ProviderID = providerID
	}
	if item.Category == "" {
		item.Category = category
	}
	if item.Tier == model.TierUnknown {
		if c.tiers != nil {
			item.Tier = c.tiers.ClassifyPublisher(item.URL, item.Publisher)
		} else {
			item.Tier = model.TierUncertain
		}
	}
	item.Stance = ""
	return item
}

func sortFailures(failures []Failure) {
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].ProviderID < failures[j].ProviderID
	})
}
