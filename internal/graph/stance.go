package graph

import (
	"strings"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
)

// Declared-rating lexicon, checked in order: unclear, neutral, refutes, supports.
// Multi-word phrases come before their single-word suffixes.
var (
	unclearRatings = []string{"unknown", "unverifiable", "unverified", "insufficient", "no evidence", "unsupported by evidence"}
	neutralRatings = []string{"mixture", "mixed", "half true", "half false", "unproven", "partly", "partially", "needs context", "missing context"}
	refuteRatings  = []string{"pants on fire", "mostly false", "not true", "false", "incorrect", "fake", "misleading", "debunked", "inaccurate", "wrong", "refutes", "refuted", "four pinocchios"}
	supportRatings = []string{"mostly true", "true", "correct", "accurate", "supports", "supported", "verified", "confirmed"}
)

// Text cues. Refute cues are counted first and stripped so that
// "not true" never contributes a support hit for "true".
var (
	refuteCues = []string{
		"no scientific evidence", "no evidence", "not true", "is false", "are false", "false",
		"myth", "debunked", "misconception", "disproven", "disproved", "untrue",
		"hoax", "incorrect", "inaccurate", "not supported", "no basis", "refuted",
		"contrary to", "misleading", "fabricated", "does not", "did not", "never",
	}
	supportCues = []string{
		"confirmed", "consistent with", "established", "according to", "evidence shows",
		"true", "accurate", "correct", "verified", "demonstrated", "measured",
		"estimated", "widely accepted", "scientific consensus", "is known",
	}
)

// RatingStance maps an explicit provider rating onto a stance.
// The second result is false when the rating is empty or unrecognized.
func RatingStance(rating string) (model.Stance, bool) {
	r := " " + extract.Normalize(rating) + " "
	if strings.TrimSpace(r) == "" {
		return "", false
	}
	switch {
	case containsAny(r, unclearRatings):
		return model.StanceUnclear, true
	case containsAny(r, neutralRatings):
		return model.StanceNeutral, true
	case containsAny(r, refuteRatings):
		return model.StanceRefutes, true
	case containsAny(r, supportRatings):
		return model.StanceSupports, true
	default:
		return "", false
	}
}

// TextStance infers a stance from item content relative to the claim tokens.
// Items below the relevance floor are unclear; relevant items whose cues
// cancel out or are absent are neutral, however much they overlap.
func TextStance(claim map[string]bool, content string, relevance, floor float64) model.Stance {
	if relevance < floor {
		return model.StanceUnclear
	}

	text := " " + extract.Normalize(content) + " "
	refutes := 0
	for _, cue := range refuteCues {
		phrase := " " + cue + " "
		if n := strings.Count(text, phrase); n > 0 {
			refutes += n
			text = strings.ReplaceAll(text, phrase, " ")
		}
	}

	supports := 0
	for _, cue := range supportCues {
		supports += strings.Count(text, " "+cue+" ")
	}
	if refutes == 0 {
		supports += sharedNumbers(claim, text)
	}

	switch net := supports - refutes; {
	case net > 0:
		return model.StanceSupports
	case net < 0:
		return model.StanceRefutes
	default:
		return model.StanceNeutral
	}
}

// sharedNumbers counts numeric claim tokens repeated in the text
func sharedNumbers(claim map[string]bool, text string) int {
	n := 0
	for tok := range claim {
		if !isNumeric(tok) {
			continue
		}
		if strings.Contains(text, " "+tok+" ") {
			n++
		}
	}
	return n
}

func isNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if (r < '0' || r > '9') && r != '.' && r != '%' {
			return false
		}
	}
	return tok[0] >= '0' && tok[0] <= '9'
}

// containsAny reports whether padded text contains any phrase on word boundaries
func containsAny(padded string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
