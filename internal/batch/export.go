package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/model"
)

// Export is the downloadable snapshot of one batch and its validation runs.
type Export struct {
	Batch       *model.ImportBatch        `json:"batch"`
	Validations []model.ValidationResults `json:"validations"`
	ExportedAt  time.Time                 `json:"exported_at"`
}

// Export collects a batch with every validation run against it, newest first.
func (t *Tracker) Export(ctx context.Context, id string) (*Export, error) {
	b, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	runs, err := t.store.ListValidationResults(ctx, id, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: export %s", id)
	}
	if runs == nil {
		runs = []model.ValidationResults{}
	}
	return &Export{Batch: b, Validations: runs, ExportedAt: t.now()}, nil
}
