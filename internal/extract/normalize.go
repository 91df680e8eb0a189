package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "of": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "by": true, "with": true, "from": true, "as": true, "that": true,
	"this": true, "it": true, "its": true, "and": true, "or": true, "but": true, "has": true,
	"have": true, "had": true, "do": true, "does": true, "did": true, "which": true, "who": true,
	"about": true, "into": true, "than": true, "then": true, "there": true, "their": true,
	"they": true, "them": true, "these": true, "those": true, "so": true, "such": true,
	"approximately": true, "around": true, "roughly": true,
}

// Normalize lowercases text, strips punctuation and collapses whitespace.
// Digits, decimal points between digits and percent signs are kept.
func Normalize(text string) string {
	runes := []rune(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(runes))

	space := true
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%':
			b.WriteRune(r)
			space = false
		case (r == '.' || r == ',') && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			if r == '.' {
				b.WriteRune(r)
			}
		case r == '\'':
			// contractions: "don't" -> "dont"
		default:
			if !space {
				b.WriteRune(' ')
				space = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Tokens returns the normalized content words of text, stopwords removed
func Tokens(text string) []string {
	fields := strings.Fields(Normalize(text))
	out := fields[:0]
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TokenSet returns Tokens as a set
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokens(text) {
		set[t] = true
	}
	return set
}

// Overlap returns the share of claim tokens present in text, in [0,1]
func Overlap(claim map[string]bool, text string) float64 {
	if len(claim) == 0 {
		return 0
	}
	other := TokenSet(text)
	hits := 0
	for t := range claim {
		if other[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(claim))
}

// Fingerprint returns the canonical hash of the claim's content words.
// Text made only of stopwords hashes its normalized form instead.
func Fingerprint(text string) string {
	canonical := strings.Join(Tokens(text), " ")
	if canonical == "" {
		canonical = Normalize(text)
	}
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}
