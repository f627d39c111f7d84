package importer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/batch"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
)

// RunOptions describes a tracked import.
type RunOptions struct {
	Type            string         `json:"type"`
	ImportedBy      string         `json:"imported_by"`
	Source          string         `json:"source"`
	SourceMetadata  map[string]any `json:"source_metadata,omitempty"`
	AllowDuplicates bool           `json:"allow_duplicates"`
}

// RunResult is the outcome of a tracked import.
type RunResult struct {
	Batch          *model.ImportBatch `json:"batch"`
	Result         *Result            `json:"result"`
	ReviewsCreated int                `json:"reviews_created,omitempty"`
}

// Runner wraps an import in an import batch: the batch is created pending,
// and completed with the tallies or failed when the import stops early.
type Runner struct {
	importer *Importer
	tracker  *batch.Tracker
	store    store.Store
	log      *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(st store.Store, im *Importer, tr *batch.Tracker) *Runner {
	return &Runner{
		importer: im,
		tracker:  tr,
		store:    st,
		log:      zap.L().With(zap.String("component", "import_runner")),
	}
}

// Run imports records under a new batch.
func (r *Runner) Run(ctx context.Context, records []model.BusinessRecord, opts RunOptions) (*RunResult, error) {
	b, err := r.tracker.Create(ctx, batch.NewBatch{
		Type:           opts.Type,
		ImportedBy:     opts.ImportedBy,
		Source:         opts.Source,
		SourceMetadata: opts.SourceMetadata,
		BusinessCount:  len(records),
	})
	if err != nil {
		return nil, err
	}

	res, err := r.importer.Import(ctx, records, Options{
		SkipDuplicates: !opts.AllowDuplicates,
		ImportSource:   opts.Source,
		ImportBatchID:  b.ID,
		SourceMetadata: opts.SourceMetadata,
	})
	results := &model.BatchResults{Created: res.Successful, Failed: res.Failed, Duplicates: res.Skipped}

	if err != nil {
		// The caller's context may be the reason for failing; record it regardless.
		failed, uerr := r.tracker.Update(context.WithoutCancel(ctx), b.ID, model.BatchStatusFailed, results, append(res.Errors, err.Error()))
		if uerr != nil {
			r.log.Error("could not mark batch failed", zap.String("batch_id", b.ID), zap.Error(uerr))
			failed = b
		}
		return &RunResult{Batch: failed, Result: res}, err
	}

	done, err := r.tracker.Update(ctx, b.ID, model.BatchStatusCompleted, results, res.Errors)
	if err != nil {
		return &RunResult{Batch: b, Result: res}, err
	}
	return &RunResult{Batch: done, Result: res}, nil
}

// RunListings imports Google listings under a new batch and stores the
// reviews of every listing that became a business.
func (r *Runner) RunListings(ctx context.Context, listings []Listing, opts RunOptions) (*RunResult, error) {
	records := make([]model.BusinessRecord, len(listings))
	for i, l := range listings {
		records[i] = l.Record
	}
	out, err := r.Run(ctx, records, opts)
	if err != nil {
		return out, err
	}

	for idx, businessID := range out.Result.CreatedIDs {
		for _, rv := range listings[idx].Reviews {
			rv.ID = uuid.NewString()
			rv.BusinessID = businessID
			if err := r.store.CreateReview(ctx, &rv); err != nil {
				r.log.Warn("could not store review", zap.String("business_id", businessID), zap.Error(err))
				continue
			}
			out.ReviewsCreated++
		}
	}
	return out, nil
}
