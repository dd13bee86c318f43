// Package runner executes one report cycle: read items, extract records,
// merge them into the stored report and save it.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"respreport/internal/extract"
	"respreport/internal/report"
	"respreport/internal/source"

	"github.com/google/uuid"
)

// Summary describes the outcome of a run.
type Summary struct {
	RunID    string
	Items    int  // raw items read from the source
	Records  int  // records extracted
	Skipped  int  // items that were not responses
	Failed   int  // items that looked like responses but could not be extracted
	Rows     int  // rows in the merged report
	Existing bool // a report existed before the run
	Saved    bool
}

// Runner orchestrates one source, the extractor and one sink.
type Runner struct {
	logger    *slog.Logger
	source    source.Source
	extractor *extract.Extractor
	sink      report.Sink
	dryRun    bool
}

// NewRunner creates a new Runner.
func NewRunner(logger *slog.Logger, src source.Source, x *extract.Extractor, sink report.Sink, dryRun bool) *Runner {
	return &Runner{
		logger:    logger,
		source:    src,
		extractor: x,
		sink:      sink,
		dryRun:    dryRun,
	}
}

// Run performs a full report cycle. Per-item extraction failures are logged
// and counted; source and sink failures abort the run before anything is
// written.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With("run", sum.RunID)
	logger.Info("Starting report run.")

	items, err := r.source.Items(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to read source items: %w", err)
	}
	sum.Items = len(items)
	logger.Info("Read source items.", "count", len(items))

	batch := r.extractor.ExtractAll(items)
	for _, f := range batch.Failures {
		logger.Warn("Failed to extract response", "origin", f.Item.Origin, "index", f.Index, "error", f.Err)
		// Continue with the next item even if one fails.
	}
	sum.Records = len(batch.Records)
	sum.Skipped = batch.Skipped
	sum.Failed = len(batch.Failures)
	logger.Debug("Skipped items that are not responses.", "count", batch.Skipped)

	existing, err := r.sink.Load(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to load existing report: %w", err)
	}
	sum.Existing = existing != nil
	if existing == nil {
		logger.Info("No existing report found, starting fresh.")
	}

	table := report.Merge(existing, batch.Records)
	sum.Rows = table.Len()

	if r.dryRun {
		logger.Info("[DRY RUN] Would save report",
			"records", sum.Records,
			"failed", sum.Failed,
			"rows", sum.Rows,
			"new", sum.Rows-existing.Len(),
		)
		return sum, nil
	}

	if err := r.sink.Save(ctx, table); err != nil {
		return sum, fmt.Errorf("failed to save report: %w", err)
	}
	sum.Saved = true

	logger.Info("Report run finished.",
		"records", sum.Records,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"rows", sum.Rows,
	)
	return sum, nil
}
