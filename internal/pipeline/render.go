package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// RenderJSON writes the result as indented JSON
func RenderJSON(w io.Writer, result *model.VerificationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteJSON renders the result to a file, creating parent directories
func WriteJSON(result *model.VerificationResult, path string) error {
	return writeFile(path, func(w io.Writer) error { return RenderJSON(w, result) })
}

// WriteMarkdown renders the Markdown report to a file
func WriteMarkdown(result *model.VerificationResult, path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, RenderMarkdown(result))
		return err
	})
}

func writeFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// RenderMarkdown produces a human-readable report of a verification
func RenderMarkdown(r *model.VerificationResult) string {
	if r == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString("# Claim Verification\n\n")
	fmt.Fprintf(&b, "> %s\n\n", r.Claim)

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| **Verdict** | %s |\n", r.Verdict)
	fmt.Fprintf(&b, "| **Confidence** | %.0f%% |\n", r.Confidence*100)
	fmt.Fprintf(&b, "| **Score** | %.3f |\n", r.Score)
	fmt.Fprintf(&b, "| **Strategy** | %s |\n", r.Strategy)
	fmt.Fprintf(&b, "| **Evidence items** | %d |\n", r.EvidenceCount)
	fmt.Fprintf(&b, "| **Profile version** | %d |\n", r.ProfileVersion)
	if r.Cached {
		b.WriteString("| **Cached** | yes |\n")
	}
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "| **Verified at** | %s |\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "| **Claim ID** | `%s` |\n\n", r.ClaimID)

	if len(r.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", w.Type, w.Severity, w.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Layer Breakdown\n\n")
	b.WriteString("| Layer | Weight | Score |\n|---|---|---|\n")
	for _, l := range r.Layers {
		fmt.Fprintf(&b, "| L%d %s | %.2f | %.3f |\n", l.Layer, l.Name, l.Weight, l.Score)
	}
	b.WriteString("\n")

	if len(r.SubClaims) > 1 {
		b.WriteString("## Sub-claims\n\n")
		b.WriteString("| # | Sub-claim | Importance | Score | Verdict |\n|---|---|---|---|---|\n")
		for _, s := range r.SubClaims {
			fmt.Fprintf(&b, "| %d | %s | %.2f | %.3f | %s |\n", s.Index+1, escapeCell(s.Text), s.Importance, s.Score, s.Verdict)
		}
		b.WriteString("\n")
	}

	writeEvidence(&b, "Evidence For", r.EvidenceFor)
	writeEvidence(&b, "Evidence Against", r.EvidenceAgainst)
	writeEvidence(&b, "Alternative Perspectives", r.Alternatives)

	b.WriteString("## Reasoning\n\n")
	for i, step := range r.Reasoning {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")

	return b.String()
}

func writeEvidence(b *strings.Builder, title string, items []model.RankedItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		source := it.ProviderID
		if it.Publisher != "" {
			source = it.Publisher
		}
		if it.URL != "" {
			source = fmt.Sprintf("[%s](%s)", source, it.URL)
		}
		fmt.Fprintf(b, "- %s (tier %d, trust %.2f): %s\n", source, it.Tier, it.Trust, truncate(it.Content, 240))
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}
