package learning

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
)

func newProfiles(t *testing.T, store cache.Store) *Profiles {
	t.Helper()
	p, err := NewProfiles(context.Background(), store, model.DefaultConfig().Learning, nil)
	require.NoError(t, err)
	return p
}

func TestProfiles_EmptySnapshot(t *testing.T) {
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	snap := p.Snapshot()
	assert.Equal(t, uint64(0), snap.Version)
	assert.Equal(t, 0.7, snap.Accuracy("openai", p.InitialAccuracy()))
}

func TestProfiles_ApplyFeedback(t *testing.T) {
	ctx := context.Background()
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	version, err := p.ApplyFeedback(ctx, map[string]float64{"right": 0, "wrong": 1}, model.VerdictFalse)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	snap := p.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	// 0.9*0.7 + 0.1*1 and 0.9*0.7 + 0.1*0
	assert.InDelta(t, 0.73, snap.Accuracy("right", 0), 1e-9)
	assert.InDelta(t, 0.63, snap.Accuracy("wrong", 0), 1e-9)
	assert.Equal(t, 1, snap.Profiles["right"].Feedback)
	assert.Equal(t, uint64(1), snap.Profiles["right"].Version)

	version, err = p.ApplyFeedback(ctx, map[string]float64{"right": 0.5}, model.VerdictDisputed)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.InDelta(t, 0.9*0.73+0.1, p.Snapshot().Accuracy("right", 0), 1e-9)
}

func TestProfiles_SnapshotIsImmutable(t *testing.T) {
	ctx := context.Background()
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	before := p.Snapshot()
	_, err := p.ApplyFeedback(ctx, map[string]float64{"a": 1}, model.VerdictTrue)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), before.Version)
	assert.Empty(t, before.Profiles)
	assert.Equal(t, uint64(1), p.Snapshot().Version)
}

func TestProfiles_UnverifiableFeedbackRejected(t *testing.T) {
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	_, err := p.ApplyFeedback(context.Background(), map[string]float64{"a": 1}, model.VerdictUnverifiable)
	var vErr *model.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "verdict", vErr.Field)
	assert.Equal(t, uint64(0), p.Version())
}

func TestProfiles_ConcurrentFeedbackLosesNoUpdates(t *testing.T) {
	ctx := context.Background()
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ApplyFeedback(ctx, map[string]float64{"shared": 1}, model.VerdictTrue)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, p.Refresh(ctx))
	snap := p.Snapshot()
	assert.Equal(t, uint64(n), snap.Version)
	assert.Equal(t, n, snap.Profiles["shared"].Feedback)
}

func TestProfiles_SharedStoreAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(time.Minute)
	a := newProfiles(t, store)
	b := newProfiles(t, store)

	_, err := a.ApplyFeedback(ctx, map[string]float64{"p": 1}, model.VerdictTrue)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), b.Version())
	require.NoError(t, b.Refresh(ctx))
	assert.Equal(t, uint64(1), b.Version())
	assert.InDelta(t, 0.73, b.Snapshot().Accuracy("p", 0), 1e-9)
}

func TestProfiles_RecordLatency(t *testing.T) {
	ctx := context.Background()
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	require.NoError(t, p.RecordLatency(ctx, []LatencySample{
		{ProviderID: "wiki", Latency: time.Second},
	}))
	require.NoError(t, p.RecordLatency(ctx, []LatencySample{
		{ProviderID: "wiki", Latency: 2 * time.Second, Failed: true},
	}))

	snap := p.Snapshot()
	assert.Equal(t, uint64(0), snap.Version)
	st := snap.Profiles["wiki"].Latency
	assert.Equal(t, int64(2), st.Count)
	assert.Equal(t, int64(1), st.Failures)
	assert.Equal(t, 2*time.Second, st.Last)
	// 0.8*1s + 0.2*2s
	assert.InDelta(t, float64(1200*time.Millisecond), float64(st.Mean), 1e3)
	assert.Equal(t, st.Mean, snap.MeanLatency("wiki"))
	assert.Equal(t, 0.7, snap.Profiles["wiki"].HistoricalAccuracy)
	// Every write gets a profile version; the set version stays put
	assert.Equal(t, uint64(2), snap.Profiles["wiki"].Version)
}

// pausingStore blocks the first version read after arm until release
type pausingStore struct {
	cache.Store
	armed   atomic.Bool
	paused  chan struct{}
	release chan struct{}
}

func (s *pausingStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.Store.Get(ctx, key)
	if key == versionKey && s.armed.CompareAndSwap(true, false) {
		close(s.paused)
		<-s.release
	}
	return raw, err
}

func TestProfiles_LatencyRefreshNeverRegressesVersion(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{
		Store:   cache.NewMemoryStore(time.Minute),
		paused:  make(chan struct{}),
		release: make(chan struct{}),
	}
	p := newProfiles(t, store)

	// The latency refresh reads version 0, then stalls
	store.armed.Store(true)
	latencyDone := make(chan error, 1)
	go func() {
		latencyDone <- p.RecordLatency(ctx, []LatencySample{{ProviderID: "wiki", Latency: time.Second}})
	}()
	<-store.paused

	version, err := p.ApplyFeedback(ctx, map[string]float64{"wiki": 1}, model.VerdictTrue)
	require.NoError(t, err)
	require.Equal(t, uint64(1), version)
	require.Equal(t, uint64(1), p.Version())

	close(store.release)
	require.NoError(t, <-latencyDone)

	snap := p.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	assert.InDelta(t, 0.73, snap.Accuracy("wiki", 0), 1e-9)
	assert.Equal(t, 1, snap.Profiles["wiki"].Feedback)
}

func TestProfiles_FeedbackRacingLatency(t *testing.T) {
	ctx := context.Background()
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	const n = 10
	stop := make(chan struct{})
	regressed := make(chan uint64, 1)
	go func() {
		var last uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			v := p.Version()
			if v < last {
				regressed <- v
				return
			}
			last = v
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := p.ApplyFeedback(ctx, map[string]float64{"gpt": 1}, model.VerdictTrue)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, p.RecordLatency(ctx, []LatencySample{{ProviderID: "gpt", Latency: time.Second}}))
		}()
	}
	wg.Wait()
	close(stop)

	select {
	case v := <-regressed:
		t.Fatalf("published version went backwards to %d", v)
	default:
	}
	snap := p.Snapshot()
	assert.Equal(t, uint64(n), snap.Version)
	assert.Equal(t, n, snap.Profiles["gpt"].Feedback)
	assert.Equal(t, int64(n), snap.Profiles["gpt"].Latency.Count)
}

func TestProfiles_LearnsSpecializations(t *testing.T) {
	ctx := context.Background()
	p := newProfiles(t, cache.NewMemoryStore(time.Minute))

	types := []model.ClaimType{model.ClaimTypeScientific, model.ClaimTypeGeneral, model.ClaimTypeHistorical}
	_, err := p.ApplyFeedback(ctx, map[string]float64{"right": 1, "wrong": 0, "unsure": 0.5}, model.VerdictTrue, types...)
	require.NoError(t, err)
	_, err = p.ApplyFeedback(ctx, map[string]float64{"right": 1}, model.VerdictTrue, model.ClaimTypeMedical, model.ClaimTypeScientific)
	require.NoError(t, err)

	snap := p.Snapshot()
	assert.Equal(t, []model.ClaimType{model.ClaimTypeHistorical, model.ClaimTypeMedical, model.ClaimTypeScientific},
		snap.Profiles["right"].Specializations)
	assert.Empty(t, snap.Profiles["wrong"].Specializations)
	assert.Empty(t, snap.Profiles["unsure"].Specializations)
	assert.True(t, snap.Learned("right", model.ClaimTypeMedical))
	assert.False(t, snap.Learned("wrong", model.ClaimTypeScientific))
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	r := NewRecords(cache.NewMemoryStore(time.Minute), time.Hour)

	_, err := r.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownClaim)

	rec := &Record{ClaimID: "c1", Fingerprint: "fp", Verdict: model.VerdictTrue, Stances: map[string]float64{"a": 1}}
	require.NoError(t, r.Save(ctx, rec))

	got, err := r.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "fp", got.Fingerprint)
	assert.Equal(t, map[string]float64{"a": 1}, got.Stances)
}

func TestStancesFromGraphs(t *testing.T) {
	graphs := []*model.EvidenceGraph{
		{Nodes: []model.GraphNode{
			{Item: model.EvidenceItem{ProviderID: "a", Stance: model.StanceSupports}},
			{Item: model.EvidenceItem{ProviderID: "a", Stance: model.StanceNeutral}, Merged: []string{"b"}},
			{Item: model.EvidenceItem{ProviderID: "c", Stance: model.StanceUnclear}},
		}},
		nil,
		{Nodes: []model.GraphNode{
			{Item: model.EvidenceItem{ProviderID: "b", Stance: model.StanceRefutes}},
		}},
	}

	assert.Equal(t, map[string]float64{"a": 0.75, "b": 0.25}, StancesFromGraphs(graphs))
}
