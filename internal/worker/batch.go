package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// Checker fact-checks a single claim
type Checker interface {
	Check(ctx context.Context, claim string) model.Verdict
}

// CheckJob represents one claim to fact-check
type CheckJob struct {
	Index   int
	Claim   string
	Checker Checker
}

// Execute runs the check unless the batch has already been cancelled
func (j *CheckJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &CheckResult{Index: j.Index, Claim: j.Claim, Error: err}
	}

	start := time.Now()
	verdict := j.Checker.Check(ctx, j.Claim)

	return &CheckResult{
		Index:    j.Index,
		Claim:    j.Claim,
		Verdict:  verdict,
		Duration: time.Since(start),
	}
}

// CheckResult represents the result of a check job
type CheckResult struct {
	Index    int
	Claim    string
	Verdict  model.Verdict
	Duration time.Duration
	Error    error
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor fact-checks many claims concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessClaims checks claims concurrently and returns results in input order
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*CheckResult {
	if len(claims) == 0 {
		return []*CheckResult{}
	}

	jobs := make([]Job, len(claims))
	for i, claim := range claims {
		jobs[i] = &CheckJob{
			Index:   i,
			Claim:   claim,
			Checker: b.checker,
		}
	}

	results := NewPool(b.concurrency).Run(ctx, jobs)

	checkResults := make([]*CheckResult, len(results))
	for i, result := range results {
		cr, ok := result.(*CheckResult)
		if !ok {
			cr = &CheckResult{Index: i, Claim: claims[i], Error: result.GetError()}
		}
		checkResults[i] = cr
	}

	return checkResults
}

// ProcessFile reads claims from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a file, one per line. Blank lines and
// lines starting with # are skipped, and claims that normalize to the same
// text are checked once.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := model.Normalize(line)
		if !seen[key] {
			seen[key] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
