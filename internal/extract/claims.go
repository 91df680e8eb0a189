package extract

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ppiankov/veracity/internal/model"
)

const (
	// MinClaimLength is the shortest accepted claim, in characters
	MinClaimLength = 10
	// MaxClaimLength is the longest accepted claim, in characters
	MaxClaimLength = 2000

	minFragmentLength = 10
)

// Decomposer classifies claims and splits compound claims into weighted sub-claims
type Decomposer struct {
	newID func() string
	now   func() time.Time
}

// NewDecomposer creates a decomposer that stamps claims with random ids
func NewDecomposer() *Decomposer {
	return &Decomposer{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// WithClock overrides the id generator and clock (tests, replay)
func (d *Decomposer) WithClock(newID func() string, now func() time.Time) *Decomposer {
	return &Decomposer{newID: newID, now: now}
}

// Sanitize trims and collapses whitespace, then enforces length bounds
func Sanitize(text string) (string, error) {
	cleaned := strings.Join(strings.Fields(text), " ")
	n := utf8.RuneCountInString(cleaned)
	switch {
	case n == 0:
		return "", &model.ValidationError{Field: "claim", Reason: "claim text is empty"}
	case n < MinClaimLength:
		return "", &model.ValidationError{Field: "claim", Reason: fmt.Sprintf("claim is too short (%d chars, minimum %d)", n, MinClaimLength)}
	case n > MaxClaimLength:
		return "", &model.ValidationError{Field: "claim", Reason: fmt.Sprintf("claim is too long (%d chars, maximum %d)", n, MaxClaimLength)}
	}
	return cleaned, nil
}

// Decompose validates, classifies and splits a raw claim
func (d *Decomposer) Decompose(text string) (*model.Claim, error) {
	cleaned, err := Sanitize(text)
	if err != nil {
		return nil, err
	}

	claim := &model.Claim{
		ID:            d.newID(),
		Text:          cleaned,
		Normalized:    Normalize(cleaned),
		Fingerprint:   Fingerprint(cleaned),
		Types:         Classify(cleaned),
		Subjective:    IsSubjective(cleaned),
		TimeSensitive: IsTimeSensitive(cleaned),
		ReceivedAt:    d.now().UTC(),
	}

	claim.SubClaims = d.split(cleaned)
	return claim, nil
}

// split breaks the claim into weighted sub-claims. Any failure degrades to one
// whole-claim sub-claim of type general.
func (d *Decomposer) split(text string) (subs []model.SubClaim) {
	defer func() {
		if r := recover(); r != nil {
			subs = []model.SubClaim{wholeClaim(text)}
		}
	}()

	fragments := splitFragments(text)
	if len(fragments) == 0 {
		return []model.SubClaim{wholeClaim(text)}
	}
	if len(fragments) == 1 {
		types := Classify(fragments[0])
		return []model.SubClaim{{
			Index:      0,
			Text:       fragments[0],
			Importance: 1,
			Type:       types[0],
			Types:      types,
			Priority:   priority(fragments[0]),
		}}
	}

	totalLen := 0
	for _, f := range fragments {
		totalLen += utf8.RuneCountInString(f)
	}

	raw := make([]float64, len(fragments))
	sum := 0.0
	for i, f := range fragments {
		raw[i] = importance(f, i, totalLen)
		sum += raw[i]
	}

	subs = make([]model.SubClaim, len(fragments))
	for i, f := range fragments {
		types := Classify(f)
		subs[i] = model.SubClaim{
			Index:      i,
			Text:       f,
			Importance: raw[i] / sum,
			Type:       types[0],
			Types:      types,
			Priority:   priority(f),
		}
	}
	fixWeightSum(subs)
	return subs
}

func wholeClaim(text string) model.SubClaim {
	return model.SubClaim{
		Index:      0,
		Text:       text,
		Importance: 1,
		Type:       model.ClaimTypeGeneral,
		Types:      []model.ClaimType{model.ClaimTypeGeneral},
		Priority:   5,
	}
}

// splitFragments splits on separators and merges fragments that are too short
// to stand alone back into their neighbour
func splitFragments(text string) []string {
	parts := separatorPattern.Split(text, -1)

	var fragments []string
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), ",.;:")
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) < minFragmentLength || len(Tokens(p)) < 2 {
			if len(fragments) > 0 {
				fragments[len(fragments)-1] += " " + p
				continue
			}
		}
		fragments = append(fragments, p)
	}

	// A short leading fragment could not merge backwards; fold it forward.
	if len(fragments) > 1 && (utf8.RuneCountInString(fragments[0]) < minFragmentLength || len(Tokens(fragments[0])) < 2) {
		fragments[1] = fragments[0] + " " + fragments[1]
		fragments = fragments[1:]
	}

	return fragments
}

// Classify returns all matching categories ordered by match count, general if none
func Classify(text string) []model.ClaimType {
	type scored struct {
		t     model.ClaimType
		order int
		count int
	}

	var matches []scored
	for order, t := range model.AllClaimTypes {
		patterns, ok := typePatterns[t]
		if !ok {
			continue
		}
		count := 0
		for _, p := range patterns {
			count += len(p.FindAllStringIndex(text, -1))
		}
		if count > 0 {
			matches = append(matches, scored{t: t, order: order, count: count})
		}
	}

	if len(matches) == 0 {
		return []model.ClaimType{model.ClaimTypeGeneral}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].count != matches[j].count {
			return matches[i].count > matches[j].count
		}
		return matches[i].order < matches[j].order
	})

	out := make([]model.ClaimType, len(matches))
	for i, m := range matches {
		out[i] = m.t
	}
	return out
}

// IsSubjective reports whether the text contains opinion markers
func IsSubjective(text string) bool {
	return matchesAny(opinionPatterns, text)
}

// IsTimeSensitive reports whether the claim's truth may change over time
func IsTimeSensitive(text string) bool {
	return matchesAny(timeSensitivePatterns, text)
}

// importance scores a clause by content, position and length share
func importance(fragment string, position, totalLen int) float64 {
	score := 1.0
	if numberPattern.MatchString(fragment) {
		score += 0.5
	}
	if absolutePattern.MatchString(fragment) {
		score += 0.3
	}
	if vaguePattern.MatchString(fragment) {
		score -= 0.2
	}
	if position == 0 {
		score += 0.2
	}
	if totalLen > 0 {
		score += 0.5 * float64(utf8.RuneCountInString(fragment)) / float64(totalLen)
	}
	return score
}

// priority maps clause features onto 1..5
func priority(fragment string) int {
	p := 3
	if numberPattern.MatchString(fragment) {
		p++
	}
	if absolutePattern.MatchString(fragment) {
		p++
	}
	if vaguePattern.MatchString(fragment) {
		p--
	}
	if p < 1 {
		p = 1
	}
	if p > 5 {
		p = 5
	}
	return p
}

// fixWeightSum pushes rounding residue into the last sub-claim so weights sum to exactly 1
func fixWeightSum(subs []model.SubClaim) {
	sum := 0.0
	for _, s := range subs[:len(subs)-1] {
		sum += s.Importance
	}
	subs[len(subs)-1].Importance = 1 - sum
}
