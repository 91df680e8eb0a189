package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Verifier verifies a single claim
type Verifier interface {
	VerifyClaim(ctx context.Context, text string) (*model.VerificationResult, error)
}

// VerifierFunc adapts a function to the Verifier interface
type VerifierFunc func(ctx context.Context, text string) (*model.VerificationResult, error)

// VerifyClaim calls f
func (f VerifierFunc) VerifyClaim(ctx context.Context, text string) (*model.VerificationResult, error) {
	return f(ctx, text)
}

// ClaimJob verifies one claim of a batch
type ClaimJob struct {
	Index    int
	Text     string
	Verifier Verifier
}

// Execute executes the claim job
func (j *ClaimJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &ClaimResult{Index: j.Index, Text: j.Text, Error: err}
	}
	result, err := j.Verifier.VerifyClaim(ctx, j.Text)
	return &ClaimResult{
		Index:  j.Index,
		Text:   j.Text,
		Result: result,
		Error:  err,
	}
}

// Fail reports a panicked verification as this claim's error
func (j *ClaimJob) Fail(err error) Result {
	return &ClaimResult{Index: j.Index, Text: j.Text, Error: err}
}

// ClaimResult is the outcome of one claim in a batch
type ClaimResult struct {
	Index  int
	Text   string
	Result *model.VerificationResult
	Error  error
}

// GetError returns the error from the claim result
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies multiple claims concurrently
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// ProcessClaims verifies claims concurrently. Results are returned in input
// order; one failing claim never affects the others.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	out := make([]*ClaimResult, len(claims))
	for i, text := range claims {
		job := &ClaimJob{Index: i, Text: text, Verifier: b.verifier}
		if !pool.Submit(job) {
			out[i] = &ClaimResult{Index: i, Text: text, Error: ctx.Err()}
		}
	}

	for _, result := range pool.Wait() {
		r := result.(*ClaimResult)
		out[r.Index] = r
	}

	// Jobs dropped by a cancelled pool never report back
	for i := range out {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &ClaimResult{Index: i, Text: claims[i], Error: err}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ProcessFile reads claims from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a file (one per line).
// Blank lines and # comments are skipped; duplicates are dropped.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
