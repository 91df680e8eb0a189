package providers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

const systemPrompt = "You are a careful fact-checking assistant. Assess claims against the published record and answer only in the requested format."

// Answer is a parsed AI-model verification response
type Answer struct {
	Rating      string   // supports, refutes, mixed, unknown
	Confidence  *float64 // 0..1 when stated
	Sources     []string
	Explanation string
}

var (
	verdictLine    = regexp.MustCompile(`(?im)^\s*\**verdict\**\s*[:=-]\s*\**\s*([a-z_ -]+)`)
	confidenceLine = regexp.MustCompile(`(?im)^\s*\**confidence\**\s*[:=-]\s*\**\s*([0-9]*\.?[0-9]+)\s*(%?)`)
	sourcesLine    = regexp.MustCompile(`(?im)^\s*\**sources\**\s*[:=-]\s*\**\s*(.*)$`)
	explainLine    = regexp.MustCompile(`(?ims)^\s*\**explanation\**\s*[:=-]\s*\**\s*(.*)`)
	urlPattern     = regexp.MustCompile(`https?://[^\s\)\]>,"']+`)
)

// BuildPrompt constructs the verification prompt for one sub-claim
func BuildPrompt(sub model.SubClaim) string {
	return fmt.Sprintf(`Assess whether the following claim is supported by established evidence.

Claim: %q
Claim type: %s

Respond with exactly these four lines:
VERDICT: one of SUPPORTS, REFUTES, MIXED, UNKNOWN
CONFIDENCE: a number between 0 and 1
SOURCES: comma-separated URLs of sources you rely on, or NONE
EXPLANATION: two or three sentences explaining the assessment

Do not invent sources. If you are not aware of reliable evidence, answer UNKNOWN.`, sub.Text, sub.Type)
}

// ParseAnswer extracts the structured verdict from a model response
func ParseAnswer(text string) (*Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	m := verdictLine.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("response has no VERDICT line")
	}
	rating, ok := normalizeRating(m[1])
	if !ok {
		return nil, fmt.Errorf("unrecognized verdict %q", strings.TrimSpace(m[1]))
	}

	answer := &Answer{Rating: rating}

	if c := confidenceLine.FindStringSubmatch(text); c != nil {
		if v, err := strconv.ParseFloat(c[1], 64); err == nil {
			if c[2] == "%" || v > 1 {
				v /= 100
			}
			v = model.Clamp01(v)
			answer.Confidence = &v
		}
	}

	if s := sourcesLine.FindStringSubmatch(text); s != nil {
		answer.Sources = extractURLs(s[1])
	}

	if e := explainLine.FindStringSubmatch(text); e != nil {
		answer.Explanation = strings.TrimSpace(e[1])
	}

	// Models often cite inline instead of on the SOURCES line
	for _, u := range extractURLs(answer.Explanation) {
		if !contains(answer.Sources, u) {
			answer.Sources = append(answer.Sources, u)
		}
	}

	return answer, nil
}

func normalizeRating(raw string) (string, bool) {
	r := strings.ToLower(strings.TrimSpace(raw))
	r = strings.Trim(r, "*_ ")
	switch {
	case strings.HasPrefix(r, "support"), r == "true", r == "correct":
		return "supports", true
	case strings.HasPrefix(r, "refute"), r == "false", r == "incorrect":
		return "refutes", true
	case strings.HasPrefix(r, "mixed"), strings.HasPrefix(r, "partly"), strings.HasPrefix(r, "partially"):
		return "mixed", true
	case strings.HasPrefix(r, "unknown"), strings.HasPrefix(r, "unverifiable"), strings.HasPrefix(r, "insufficient"):
		return "unknown", true
	default:
		return "", false
	}
}

// answerItem converts a parsed answer into an ai_model evidence item
func answerItem(d *Descriptor, modelName string, a *Answer) model.EvidenceItem {
	content := a.Explanation
	if content == "" {
		content = "Model verdict: " + a.Rating
	}
	return model.EvidenceItem{
		ProviderID:     d.Name,
		Category:       model.CategoryAIModel,
		Content:        content,
		Publisher:      modelName,
		References:     a.Sources,
		Tier:           model.TierGeneral,
		DeclaredRating: a.Rating,
		Timestamp:      d.clock(),
		RawConfidence:  a.Confidence,
		Metadata:       map[string]string{"model": modelName},
	}
}

// extractURLs extracts all URLs from text
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	return unique
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
