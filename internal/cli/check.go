package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainbreaker/internal/pipeline"
)

var (
	checkTimeout time.Duration
	jsonOutput   bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <claim>",
	Short: "Fact-check a single claim",
	Long: `Runs one fact-check without touching the database:
- The model picks up to three evidence lookups
- Evidence is weighed into a verdict with confidence and sources
- Without a model, sources are queried in priority order and scored

Example:
  chainbreaker check "The Eiffel Tower is in Paris"
  chainbreaker check "5G towers spread viruses" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Minute, "timeout for the check")
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the verdict as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	claim := strings.TrimSpace(strings.Join(args, " "))
	if claim == "" {
		return fmt.Errorf("claim is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	p := pipeline.NewPipeline(ctx, cfg, log, nil)

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Checking: %s\n", claim)
	}
	start := time.Now()
	verdict := p.Check(ctx, claim)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verdict); err != nil {
			return fmt.Errorf("encode verdict: %w", err)
		}
	} else {
		fmt.Println(pipeline.FormatVerdict(verdict))
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "\n✓ %d tool calls in %v\n", verdict.ToolCalls, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
