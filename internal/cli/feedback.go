package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/model"
)

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback <claim-id> <verdict>",
	Short: "Report the correct verdict for a verified claim",
	Long: `Feedback tells Veracity what the correct verdict of an earlier
verification was. Every provider that contributed evidence has its accuracy
profile adjusted toward how well its stance matched the verdict, and the
profile version is bumped so cached verdicts are recomputed.

Feedback needs a persistent cache backend (disk, layered, badger, sqlite or
redis) so the claim record outlives the verify run.

Verdicts: TRUE, MOSTLY_TRUE, PARTIALLY_TRUE, NEEDS_CONTEXT, DISPUTED,
MISLEADING, FALSE

Example:
  veracity feedback 6f1c9a3e-5b7d-4c35-9a61-0d2b8e4f7a10 FALSE`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = p.Close()
			_ = logger.Sync()
		}()

		verdict := model.Verdict(strings.ToUpper(args[1]))
		version, err := p.SubmitFeedback(cmd.Context(), args[0], verdict)
		if err != nil {
			return fmt.Errorf("feedback failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Feedback recorded (profile version %d)\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}
