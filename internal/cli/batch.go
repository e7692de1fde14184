package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/pipeline"
	"github.com/ppiankov/chainbreaker/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchJSON    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Fact-check claims from a file in parallel",
	Long: `Batch checks many claims concurrently:
- Read claims from input file (one per line, # comments allowed)
- Claims with the same normalized text are checked once
- Check claims in parallel with configurable worker count
- Print one line per claim and a summary by verdict

Example:
  chainbreaker batch claims.txt
  chainbreaker batch claims.txt --concurrency 8 --timeout 10m
  chainbreaker batch claims.txt --json > verdicts.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print results as a JSON array on stdout")
}

type batchEntry struct {
	Claim    string         `json:"claim"`
	Verdict  *model.Verdict `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration string         `json:"duration"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  ChainBreaker Batch Check\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p := pipeline.NewPipeline(ctx, cfg, log, nil)
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	counts := make(map[model.Label]int)
	failures := 0
	entries := make([]batchEntry, 0, len(results))

	for _, result := range results {
		entry := batchEntry{Claim: result.Claim, Duration: result.Duration.Round(time.Millisecond).String()}
		if result.Error != nil {
			failures++
			entry.Error = result.Error.Error()
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Claim, result.Error)
			entries = append(entries, entry)
			continue
		}

		verdict := result.Verdict
		entry.Verdict = &verdict
		counts[verdict.Label]++
		entries = append(entries, entry)
		fmt.Fprintf(os.Stderr, "✓ [%s %d%%] %s\n", verdict.Label, verdict.Confidence, result.Claim)
	}

	if batchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d claims\n", len(results))
	for _, label := range model.Labels {
		if counts[label] > 0 {
			fmt.Fprintf(os.Stderr, "  %-12s %d\n", string(label)+":", counts[label])
		}
	}
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", failures)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
