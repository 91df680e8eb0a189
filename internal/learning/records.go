package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
)

// ErrUnknownClaim is returned for feedback on a claim id with no record
var ErrUnknownClaim = errors.New("learning: unknown claim id")

// Record remembers which providers contributed to a verification and with
// what stance, so later feedback can be attributed
type Record struct {
	ClaimID     string             `json:"claim_id"`
	Fingerprint string             `json:"fingerprint"`
	Verdict     model.Verdict      `json:"verdict"`
	Types       []model.ClaimType  `json:"types,omitempty"`
	Stances     map[string]float64 `json:"stances"` // provider id -> mean stance score
	CreatedAt   time.Time          `json:"created_at"`
}

// Records persists verification records with a TTL
type Records struct {
	store cache.Store
	ttl   time.Duration
}

// NewRecords creates a record store; records expire after ttl (0 = never)
func NewRecords(store cache.Store, ttl time.Duration) *Records {
	return &Records{store: store, ttl: ttl}
}

func recordKey(claimID string) string {
	return cache.Key("record", claimID)
}

// Save stores a record
func (r *Records) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return r.store.Set(ctx, recordKey(rec.ClaimID), data, r.ttl)
}

// Load returns the record for a claim id or ErrUnknownClaim
func (r *Records) Load(ctx context.Context, claimID string) (*Record, error) {
	data, err := r.store.Get(ctx, recordKey(claimID))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrUnknownClaim
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// StancesFromGraphs averages the stance score each provider contributed,
// counting merged duplicates for every provider that returned them.
// Unclear items abstain.
func StancesFromGraphs(graphs []*model.EvidenceGraph) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, n := range g.Nodes {
			s, ok := n.Item.Stance.Score()
			if !ok {
				continue
			}
			for _, id := range append([]string{n.Item.ProviderID}, n.Merged...) {
				sums[id] += s
				counts[id]++
			}
		}
	}
	out := make(map[string]float64, len(sums))
	for id, sum := range sums {
		out[id] = sum / float64(counts[id])
	}
	return out
}
