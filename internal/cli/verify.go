package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/observe"
	"github.com/ppiankov/veracity/internal/pipeline"
)

var (
	strategy string
	detail   string
	outJSON  string
	outMD    string
	timeout  time.Duration
	noCache  bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim against all configured sources",
	Long: `Verify checks one claim:
- Decompose it into weighted sub-claims
- Query the selected evidence providers in parallel
- Build a citation graph and propagate trust
- Score the evidence through seven consensus layers
- Print the verdict with its evidence and reasoning

The result is written to stdout as JSON unless --json or --md is given.

Example:
  veracity verify "The Earth is approximately 4.5 billion years old"
  veracity verify "Water boils at 100 degrees Celsius at sea level" --strategy speed
  veracity verify "Humans only use 10% of their brain" --detail full --md report.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&strategy, "strategy", string(model.StrategyBalanced), "routing strategy (speed, balanced, accuracy, comprehensive)")
	verifyCmd.Flags().StringVar(&detail, "detail", string(model.DetailStandard), "result detail (summary, standard, full)")
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall verification timeout")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verdict cache")
}

// openPipeline loads configuration and wires a pipeline for one CLI run
func openPipeline(ctx context.Context) (*pipeline.Pipeline, *zap.Logger, error) {
	cfg, file, err := loadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	logger := newLogger(cfg)
	if file != "" {
		logger.Debug("using config file", zap.String("path", file))
	}

	p, err := pipeline.Open(ctx, cfg, logger, observe.NewLogSink(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return p, logger, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	claim := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	p, logger, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
		_ = logger.Sync()
	}()

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying: %s\n", claim)
		fmt.Fprintf(os.Stderr, "Strategy: %s\n", strategy)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", !noCache)
		fmt.Fprintln(os.Stderr)
	}

	result, err := p.Verify(ctx, claim, model.Strategy(strategy), model.DetailLevel(detail))
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	printSummary(os.Stderr, result)

	if outJSON == "" && outMD == "" {
		return pipeline.RenderJSON(cmd.OutOrStdout(), result)
	}
	if outJSON != "" {
		if err := pipeline.WriteJSON(result, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := pipeline.WriteMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}
	return nil
}

// printSummary writes the verdict banner shown before any report output
func printSummary(w io.Writer, r *model.VerificationResult) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s (confidence %.0f%%)\n", r.Verdict, r.Confidence*100)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Claim:      %s\n", r.Claim)
	fmt.Fprintf(w, "  Score:      %.3f\n", r.Score)
	fmt.Fprintf(w, "  Evidence:   %d items\n", r.EvidenceCount)
	fmt.Fprintf(w, "  Strategy:   %s\n", r.Strategy)
	if r.Cached {
		fmt.Fprintf(w, "  Cached:     yes\n")
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  ⚠ %s: %s\n", warn.Type, warn.Message)
	}
	fmt.Fprintf(w, "\n")
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <claim>",
	Short: "Decompose a claim without verifying it",
	Long: `Analyze shows how a claim would be processed: its categories,
weighted sub-claims and opinion or time-sensitivity markers.
No provider is contacted.

Example:
  veracity analyze "The population of Tokyo is 14 million and it is the capital of Japan"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = p.Close()
			_ = logger.Sync()
		}()

		claim, err := p.Analyze(strings.Join(args, " "))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(claim)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
