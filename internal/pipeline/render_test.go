package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func sampleResult() *model.VerificationResult {
	return &model.VerificationResult{
		ClaimID:    "claim-1",
		Claim:      "The Earth is approximately 4.5 billion years old",
		Verdict:    model.VerdictTrue,
		Confidence: 0.91,
		Score:      0.91,
		Strategy:   model.StrategyBalanced,
		Layers: []model.LayerResult{
			{Layer: 1, Name: "AI-model agreement", Weight: 0.35, Score: 0.93, Rationale: "2 of 2 AI model votes support"},
			{Layer: 7, Name: "Verdict synthesis", Weight: 0.05, Score: 0.9, Rationale: "weighted combination"},
		},
		EvidenceFor: []model.RankedItem{
			{ProviderID: "search", URL: "https://www.usgs.gov/age-of-earth", Publisher: "USGS", Tier: model.TierAuthoritative, Trust: 0.95, Content: "The Earth is 4.54 billion years old."},
		},
		Reasoning: []string{"L1 AI-model agreement (weight 0.35): score 0.93", "L7 Verdict synthesis (weight 0.05): score 0.90; final score 0.91 maps to TRUE"},
		Warnings: []model.Warning{
			{Type: model.WarningProviderFailures, Severity: model.SeverityWarning, Message: "1 provider call(s) failed"},
		},
		SubClaims: []model.SubClaimScore{
			{Index: 0, Text: "The Earth | is old", Importance: 0.6, Score: 0.9, Verdict: model.VerdictTrue},
			{Index: 1, Text: "it orbits the Sun", Importance: 0.4, Score: 0.92, Verdict: model.VerdictTrue},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleResult())

	requiredSections := []string{
		"# Claim Verification",
		"> The Earth is approximately 4.5 billion years old",
		"| **Verdict** | TRUE |",
		"| **Confidence** | 91% |",
		"## Warnings",
		"provider_failures",
		"## Layer Breakdown",
		"| L1 AI-model agreement | 0.35 | 0.930 |",
		"## Sub-claims",
		`The Earth \| is old`,
		"## Evidence For",
		"[USGS](https://www.usgs.gov/age-of-earth)",
		"## Reasoning",
		"2. L7 Verdict synthesis",
	}

	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Expected markdown to contain '%s'", section)
		}
	}

	if strings.Contains(md, "## Evidence Against") {
		t.Error("Expected no empty evidence against section")
	}
}

func TestRenderMarkdown_Nil(t *testing.T) {
	if md := RenderMarkdown(nil); md != "" {
		t.Errorf("Expected empty markdown for nil result, got %q", md)
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	for _, key := range []string{"verdict", "confidence", "layer_breakdown", "reasoning_chain", "evidence_for"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in JSON output", key)
		}
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "result.json")
	mdPath := filepath.Join(dir, "out", "result.md")

	if err := WriteJSON(sampleResult(), jsonPath); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if err := WriteMarkdown(sampleResult(), mdPath); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}

	for _, path := range []string{jsonPath, mdPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", path, err)
		}
		if info.Size() == 0 {
			t.Errorf("Expected %s to be non-empty", path)
		}
	}
}
