package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
)

const maxCASAttempts = 32

// learnMatch is the stance match at which feedback marks a claim type as a
// provider specialization
const learnMatch = 0.75

var (
	versionKey = cache.Key("profiles", "version")
	indexKey   = cache.Key("profiles", "index")
)

func profileKey(providerID string) string {
	return cache.Key("profile", providerID)
}

// Profiles holds provider accuracy and latency. Reads return an immutable
// snapshot without locking; writes go through compare-and-swap on the
// store, one key per provider, and never hold a lock across I/O.
type Profiles struct {
	store     cache.Store
	cfg       model.LearningConfig
	logger    *zap.Logger
	now       func() time.Time
	current   atomic.Pointer[published]
	refreshes atomic.Uint64
}

// published is a snapshot tagged with the refresh that built it
type published struct {
	snap *model.ProfileSnapshot
	seq  uint64
}

// NewProfiles creates a profile set over store and loads the current snapshot
func NewProfiles(ctx context.Context, store cache.Store, cfg model.LearningConfig, logger *zap.Logger) (*Profiles, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := model.DefaultConfig().Learning
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = defaults.Alpha
	}
	if cfg.InitialAccuracy <= 0 {
		cfg.InitialAccuracy = defaults.InitialAccuracy
	}
	if cfg.LatencyAlpha <= 0 || cfg.LatencyAlpha > 1 {
		cfg.LatencyAlpha = defaults.LatencyAlpha
	}

	p := &Profiles{store: store, cfg: cfg, logger: logger, now: time.Now}
	p.current.Store(&published{snap: &model.ProfileSnapshot{Profiles: map[string]model.ProviderProfile{}}})
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot returns the current immutable profile view
func (p *Profiles) Snapshot() *model.ProfileSnapshot {
	return p.current.Load().snap
}

// Version returns the current profile-set version
func (p *Profiles) Version() uint64 {
	return p.Snapshot().Version
}

// InitialAccuracy is the accuracy assumed for providers without history
func (p *Profiles) InitialAccuracy() float64 {
	return p.cfg.InitialAccuracy
}

// Refresh reloads every profile from the store. A snapshot older than the
// one already published, by set version and then by refresh start, is
// discarded, so the published version never goes backwards.
func (p *Profiles) Refresh(ctx context.Context) error {
	seq := p.refreshes.Add(1)
	version, err := p.readVersion(ctx)
	if err != nil {
		return err
	}
	ids, _, err := p.readIndex(ctx)
	if err != nil {
		return err
	}

	snap := &model.ProfileSnapshot{Version: version, Profiles: make(map[string]model.ProviderProfile, len(ids))}
	for _, id := range ids {
		prof, _, err := p.readProfile(ctx, id)
		if err != nil {
			return err
		}
		if prof != nil {
			snap.Profiles[id] = *prof
		}
	}
	p.publish(&published{snap: snap, seq: seq})
	return nil
}

func (p *Profiles) publish(next *published) bool {
	for {
		old := p.current.Load()
		if next.snap.Version < old.snap.Version ||
			(next.snap.Version == old.snap.Version && next.seq < old.seq) {
			p.logger.Debug("stale profile snapshot discarded",
				zap.Uint64("version", next.snap.Version),
				zap.Uint64("published", old.snap.Version))
			return false
		}
		if p.current.CompareAndSwap(old, next) {
			return true
		}
	}
}

func (p *Profiles) readVersion(ctx context.Context) (uint64, error) {
	raw, err := p.store.Get(ctx, versionKey)
	if errors.Is(err, cache.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read profile version: %w", err)
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse profile version: %w", err)
	}
	return v, nil
}

func (p *Profiles) readIndex(ctx context.Context) ([]string, []byte, error) {
	raw, err := p.store.Get(ctx, indexKey)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read profile index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, nil, fmt.Errorf("decode profile index: %w", err)
	}
	return ids, raw, nil
}

func (p *Profiles) readProfile(ctx context.Context, id string) (*model.ProviderProfile, []byte, error) {
	raw, err := p.store.Get(ctx, profileKey(id))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read profile %s: %w", id, err)
	}
	var prof model.ProviderProfile
	if err := json.Unmarshal(raw, &prof); err != nil {
		return nil, nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return &prof, raw, nil
}

// update applies fn to one provider's profile under compare-and-swap
func (p *Profiles) update(ctx context.Context, id string, fn func(*model.ProviderProfile)) (*model.ProviderProfile, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, raw, err := p.readProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		next := model.ProviderProfile{ProviderID: id, HistoricalAccuracy: p.cfg.InitialAccuracy}
		if cur != nil {
			next = *cur
		}
		fn(&next)
		next.UpdatedAt = p.now().UTC()

		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode profile %s: %w", id, err)
		}
		ok, err := p.store.CompareAndSwap(ctx, profileKey(id), raw, data, 0)
		if err != nil {
			return nil, fmt.Errorf("write profile %s: %w", id, err)
		}
		if ok {
			if cur == nil {
				if err := p.addToIndex(ctx, id); err != nil {
					return nil, err
				}
			}
			return &next, nil
		}
	}
	return nil, fmt.Errorf("profile %s: too much write contention", id)
}

func (p *Profiles) addToIndex(ctx context.Context, id string) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		ids, raw, err := p.readIndex(ctx)
		if err != nil {
			return err
		}
		pos := sort.SearchStrings(ids, id)
		if pos < len(ids) && ids[pos] == id {
			return nil
		}
		ids = append(ids, "")
		copy(ids[pos+1:], ids[pos:])
		ids[pos] = id

		data, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		ok, err := p.store.CompareAndSwap(ctx, indexKey, raw, data, 0)
		if err != nil {
			return fmt.Errorf("write profile index: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("profile index: too much write contention")
}

func (p *Profiles) bumpVersion(ctx context.Context) (uint64, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		raw, err := p.store.Get(ctx, versionKey)
		var cur uint64
		switch {
		case errors.Is(err, cache.ErrNotFound):
			raw = nil
		case err != nil:
			return 0, fmt.Errorf("read profile version: %w", err)
		default:
			if cur, err = strconv.ParseUint(string(raw), 10, 64); err != nil {
				return 0, fmt.Errorf("parse profile version: %w", err)
			}
		}
		next := cur + 1
		ok, err := p.store.CompareAndSwap(ctx, versionKey, raw, []byte(strconv.FormatUint(next, 10)), 0)
		if err != nil {
			return 0, fmt.Errorf("write profile version: %w", err)
		}
		if ok {
			return next, nil
		}
	}
	return 0, fmt.Errorf("profile version: too much write contention")
}

// StanceMatch scores how well a provider's stance agreed with the asserted verdict
func StanceMatch(stanceScore, target float64) float64 {
	return 1 - math.Abs(stanceScore-target)
}

// ApplyFeedback moves each provider's accuracy toward how well its stance
// matched the asserted verdict and bumps the profile-set version. stances
// maps provider id to the stance score it contributed. A provider whose
// stance matched well learns the claim types as specializations.
func (p *Profiles) ApplyFeedback(ctx context.Context, stances map[string]float64, verdict model.Verdict, types ...model.ClaimType) (uint64, error) {
	target, ok := verdict.Target()
	if !ok {
		return 0, &model.ValidationError{Field: "verdict", Reason: fmt.Sprintf("%s cannot be used as feedback", verdict)}
	}

	ids := make([]string, 0, len(stances))
	for id := range stances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	alpha := p.cfg.Alpha
	for _, id := range ids {
		match := StanceMatch(stances[id], target)
		updated, err := p.update(ctx, id, func(prof *model.ProviderProfile) {
			prof.HistoricalAccuracy = model.Clamp01((1-alpha)*prof.HistoricalAccuracy + alpha*match)
			prof.Feedback++
			prof.Version++
			if match >= learnMatch {
				prof.Specializations = learnTypes(prof.Specializations, types)
			}
		})
		if err != nil {
			return 0, err
		}
		p.logger.Info("provider accuracy updated",
			zap.String("provider", id),
			zap.Float64("match", match),
			zap.Float64("accuracy", updated.HistoricalAccuracy))
	}

	version := p.Version()
	if len(ids) > 0 {
		var err error
		if version, err = p.bumpVersion(ctx); err != nil {
			return 0, err
		}
	}
	if err := p.Refresh(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

// learnTypes merges types into a sorted set of specializations
func learnTypes(have, types []model.ClaimType) []model.ClaimType {
	out := append([]model.ClaimType(nil), have...)
	for _, t := range types {
		if t == "" || t == model.ClaimTypeGeneral {
			continue
		}
		pos := sort.Search(len(out), func(i int) bool { return out[i] >= t })
		if pos < len(out) && out[pos] == t {
			continue
		}
		out = append(out, "")
		copy(out[pos+1:], out[pos:])
		out[pos] = t
	}
	return out
}

// LatencySample is one observed provider call
type LatencySample struct {
	ProviderID string
	Latency    time.Duration
	Failed     bool
}

// RecordLatency folds observed call latencies into the profiles. Each
// written profile gets a new per-profile version, but the profile-set
// version is unchanged, so cached verdicts stay valid.
func (p *Profiles) RecordLatency(ctx context.Context, samples []LatencySample) error {
	alpha := p.cfg.LatencyAlpha
	for _, s := range samples {
		s := s
		_, err := p.update(ctx, s.ProviderID, func(prof *model.ProviderProfile) {
			prof.Version++
			st := &prof.Latency
			st.Count++
			st.Last = s.Latency
			if s.Failed {
				st.Failures++
			}
			if st.Count == 1 {
				st.Mean = s.Latency
			} else {
				st.Mean = time.Duration((1-alpha)*float64(st.Mean) + alpha*float64(s.Latency))
			}
		})
		if err != nil {
			return err
		}
	}
	return p.Refresh(ctx)
}
