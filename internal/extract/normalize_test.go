package extract

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		desc  string
		input string
		want  string
	}{
		{desc: "case and punctuation", input: "The Earth, is OLD!", want: "the earth is old"},
		{desc: "decimal kept", input: "about 4.5 billion", want: "about 4.5 billion"},
		{desc: "thousands separator dropped", input: "67,000 mph", want: "67000 mph"},
		{desc: "percent kept", input: "Only 10% of it", want: "only 10% of it"},
		{desc: "contraction", input: "It doesn't matter", want: "it doesnt matter"},
		{desc: "whitespace collapsed", input: "  a \n\t b  ", want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokens_DropsStopwords(t *testing.T) {
	got := strings.Join(Tokens("The Earth is not flat"), " ")
	if got != "earth not flat" {
		t.Errorf("Tokens = %q", got)
	}
}

func TestOverlap(t *testing.T) {
	claim := TokenSet("Humans only use 10% of their brain")
	if o := Overlap(claim, "Humans use virtually all of their brain"); o < 0.5 {
		t.Errorf("expected high overlap, got %f", o)
	}
	if o := Overlap(claim, "Stock markets rallied on Tuesday"); o != 0 {
		t.Errorf("expected zero overlap, got %f", o)
	}
	if o := Overlap(map[string]bool{}, "anything"); o != 0 {
		t.Errorf("expected zero overlap for empty claim, got %f", o)
	}
}

func TestFingerprint_Stopwords(t *testing.T) {
	tests := []struct {
		desc string
		a, b string
		same bool
	}{
		{desc: "articles dropped", a: "The Earth orbits the Sun", b: "Earth orbits Sun", same: true},
		{desc: "hedges dropped", a: "The Earth is approximately 4.5 billion years old", b: "Earth is 4.5 billion years old", same: true},
		{desc: "negation kept", a: "Vaccines cause autism", b: "Vaccines do not cause autism", same: false},
		{desc: "numbers kept", a: "Water boils at 100 degrees", b: "Water boils at 90 degrees", same: false},
		{desc: "stopwords only", a: "it is that", b: "it was that", same: false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := Fingerprint(tt.a) == Fingerprint(tt.b); got != tt.same {
				t.Errorf("expected same=%v for %q and %q", tt.same, tt.a, tt.b)
			}
		})
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("Humans only use 10% of their brain.")
	b := Fingerprint("  humans ONLY use 10% of their brain ")
	if a != b {
		t.Error("fingerprints should match for equivalent text")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %d chars", len(a))
	}
}
