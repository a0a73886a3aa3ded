package rename

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Batch Processing
// =============================================================================

// BatchFailure records one failed document in a batch run.
type BatchFailure struct {
	Path string
	Err  error
}

// BatchResult aggregates a bulk run. One bad document never aborts the
// batch: failures are tallied and reported together.
type BatchResult struct {
	// RunID identifies this batch run in logs and reports.
	RunID string

	Total    int
	Renamed  int
	Skipped  int
	Failed   int
	Failures []BatchFailure
}

// Summary returns the human-readable aggregate notice.
func (r BatchResult) Summary() string {
	return fmt.Sprintf("renamed %d/%d notes", r.Renamed, r.Total)
}

// ProcessBatch runs the pipeline over docs sequentially. Every reservation
// taken during the run is released before it returns, regardless of outcome.
func (o *Orchestrator) ProcessBatch(ctx context.Context, docs []vault.Document, opts Options) BatchResult {
	result := BatchResult{
		RunID: uuid.NewString(),
		Total: len(docs),
	}

	opts.Manual = true
	opts.NoDelay = true
	opts.IsBatch = true

	var reserved []string
	defer func() {
		o.cache.ReleasePathsBatch(reserved)
	}()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, BatchFailure{Path: doc.Path, Err: err})
			continue
		}

		res := o.processOne(ctx, doc, opts)
		if res.NewPath != "" {
			reserved = append(reserved, res.NewPath)
		}

		switch {
		case res.Renamed:
			result.Renamed++
		case res.Skipped:
			result.Skipped++
		case !res.Success:
			result.Failed++
			result.Failures = append(result.Failures, BatchFailure{Path: doc.Path, Err: res.Err})
		}
	}

	o.log.Info("batch complete",
		"run_id", result.RunID,
		"total", result.Total,
		"renamed", result.Renamed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result
}

// processOne isolates a single document so a panic in any step aborts that
// document only.
func (o *Orchestrator) processOne(ctx context.Context, doc vault.Document, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("process %s: panic: %v", doc.Path, r)}
		}
	}()
	return o.ProcessFile(ctx, doc, opts)
}
