// Package batch tracks the lifecycle of import batches and repairs batches
// whose status drifted from the businesses they actually created.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
)

var (
	// ErrBatchNotFound is returned when no batch has the requested id.
	ErrBatchNotFound = eris.New("batch: import batch not found")
	// ErrInvalidTransition is returned when a terminal batch is updated or the
	// target status is unknown.
	ErrInvalidTransition = eris.New("batch: invalid status transition")
)

// DefaultFixWindow is how far either side of a batch's import time a legacy
// business may have been created and still be attributed to it.
const DefaultFixWindow = 10 * time.Minute

// NewBatch describes a batch about to be imported.
type NewBatch struct {
	Type           string         `json:"type"`
	ImportedBy     string         `json:"imported_by"`
	Source         string         `json:"source" validate:"required"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
	BusinessCount  int            `json:"business_count" validate:"gte=0"`
}

// Match strategies reported by FixPending.
const (
	MatchBatchID    = "batch_id"
	MatchTimeWindow = "time_window"
)

// Fix reports one batch repaired by FixPending.
type Fix struct {
	BatchID string `json:"batch_id"`
	Created int    `json:"created"`
	MatchBy string `json:"match_by"`
}

// Tracker creates, transitions and maintains import batches.
type Tracker struct {
	store  store.Store
	window time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewTracker creates a Tracker using DefaultFixWindow.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{
		store:  st,
		window: DefaultFixWindow,
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.L().With(zap.String("component", "batch")),
	}
}

// WithNow overrides the clock.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// WithWindow overrides the FixPending legacy time window.
func (t *Tracker) WithWindow(d time.Duration) *Tracker {
	if d > 0 {
		t.window = d
	}
	return t
}

// Create records a new pending batch.
func (t *Tracker) Create(ctx context.Context, nb NewBatch) (*model.ImportBatch, error) {
	b := &model.ImportBatch{
		ID:             uuid.NewString(),
		Type:           nb.Type,
		ImportedBy:     nb.ImportedBy,
		Source:         nb.Source,
		SourceMetadata: nb.SourceMetadata,
		BusinessCount:  nb.BusinessCount,
		Status:         model.BatchStatusPending,
		ImportedAt:     t.now(),
	}
	if err := t.store.CreateImportBatch(ctx, b); err != nil {
		return nil, eris.Wrap(err, "batch: create")
	}
	t.log.Info("import batch created",
		zap.String("batch_id", b.ID),
		zap.String("source", b.Source),
		zap.Int("business_count", b.BusinessCount),
	)
	return b, nil
}

// Update moves a batch to status. Results and errors replace the stored ones
// when non-nil. Terminal batches cannot change. Entering a terminal status
// stamps completedAt; entering completed also invalidates the sitemap cache.
func (t *Tracker) Update(ctx context.Context, id string, status model.BatchStatus, results *model.BatchResults, errs []string) (*model.ImportBatch, error) {
	if !status.Valid() {
		return nil, eris.Wrapf(ErrInvalidTransition, "batch: unknown status %q", status)
	}
	b, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, eris.Wrapf(ErrInvalidTransition, "batch: %s is already %s", id, b.Status)
	}

	now := t.now()
	b.Status = status
	if results != nil {
		b.Results = results
	}
	if errs != nil {
		b.Errors = errs
	}
	if status.Terminal() {
		b.CompletedAt = &now
	}
	if err := t.store.UpdateImportBatch(ctx, b); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrBatchNotFound, "batch: update %s", id)
		}
		return nil, eris.Wrapf(err, "batch: update %s", id)
	}

	if status == model.BatchStatusCompleted {
		reason := fmt.Sprintf("import batch %s completed", id)
		for _, key := range []string{model.SitemapCacheKey, model.SitemapBatchKey(id)} {
			entry := &model.CacheEntry{Key: key, InvalidatedAt: now, Reason: reason}
			if err := t.store.PutCacheEntry(ctx, entry); err != nil {
				return nil, eris.Wrapf(err, "batch: invalidate sitemap for %s", id)
			}
		}
	}

	t.log.Info("import batch updated", zap.String("batch_id", id), zap.String("status", string(status)))
	return b, nil
}

// Get returns a batch or ErrBatchNotFound.
func (t *Tracker) Get(ctx context.Context, id string) (*model.ImportBatch, error) {
	b, err := t.store.GetImportBatch(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: get %s", id)
	}
	if b == nil {
		return nil, eris.Wrapf(ErrBatchNotFound, "batch: get %s", id)
	}
	return b, nil
}

// List returns batches newest first, optionally filtered by status.
// A limit <= 0 returns every batch.
func (t *Tracker) List(ctx context.Context, limit int, status model.BatchStatus) ([]model.ImportBatch, error) {
	list, err := t.store.ListImportBatches(ctx, store.BatchFilter{Status: status, Limit: limit})
	return list, eris.Wrap(err, "batch: list")
}

// Delete removes a batch record. Businesses it created are kept.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	ok, err := t.store.DeleteImportBatch(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "batch: delete %s", id)
	}
	if !ok {
		return eris.Wrapf(ErrBatchNotFound, "batch: delete %s", id)
	}
	return nil
}

// FixPending completes pending batches that demonstrably created businesses.
// A batch that cannot be repaired is logged and skipped; the fixes made are
// returned together with an error naming the skipped batches.
// Businesses are attributed by their import batch id; batches with none fall
// back to businesses from the same source without a batch id, created within
// the fix window around the batch's import time.
func (t *Tracker) FixPending(ctx context.Context) ([]Fix, error) {
	pending, err := t.List(ctx, 0, model.BatchStatusPending)
	if err != nil {
		return nil, err
	}

	var (
		fixes  []Fix
		failed []string
	)
	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return fixes, eris.Wrap(err, "batch: fix pending interrupted")
		}
		n, matchBy, err := t.attributed(ctx, &b)
		if err != nil {
			t.log.Warn("fix pending batch failed", zap.String("batch_id", b.ID), zap.Error(err))
			failed = append(failed, b.ID)
			continue
		}
		if n == 0 {
			t.log.Debug("pending batch has no businesses", zap.String("batch_id", b.ID))
			continue
		}
		if _, err := t.Update(ctx, b.ID, model.BatchStatusCompleted, &model.BatchResults{Created: n}, nil); err != nil {
			t.log.Warn("fix pending batch failed", zap.String("batch_id", b.ID), zap.Error(err))
			failed = append(failed, b.ID)
			continue
		}
		fixes = append(fixes, Fix{BatchID: b.ID, Created: n, MatchBy: matchBy})
	}

	t.log.Info("fixed pending batches",
		zap.Int("pending", len(pending)), zap.Int("fixed", len(fixes)), zap.Int("failed", len(failed)))
	if len(failed) > 0 {
		return fixes, eris.Errorf("batch: could not fix %d pending batches: %s", len(failed), strings.Join(failed, ", "))
	}
	return fixes, nil
}

func (t *Tracker) attributed(ctx context.Context, b *model.ImportBatch) (int, string, error) {
	n, err := t.store.CountBusinesses(ctx, store.BusinessFilter{ImportBatchID: b.ID})
	if err != nil {
		return 0, "", eris.Wrapf(err, "batch: count businesses for %s", b.ID)
	}
	if n > 0 {
		return n, MatchBatchID, nil
	}

	n, err = t.store.CountBusinesses(ctx, store.BusinessFilter{
		NoImportBatch: true,
		PrimarySource: b.Source,
		CreatedAfter:  b.ImportedAt.Add(-t.window),
		CreatedBefore: b.ImportedAt.Add(t.window),
	})
	if err != nil {
		return 0, "", eris.Wrapf(err, "batch: count legacy businesses for %s", b.ID)
	}
	return n, MatchTimeWindow, nil
}

// CleanupOld deletes every failed and pending batch regardless of age and
// returns how many were removed.
func (t *Tracker) CleanupOld(ctx context.Context) (int, error) {
	total := 0
	for _, status := range []model.BatchStatus{model.BatchStatusFailed, model.BatchStatusPending} {
		n, err := t.store.DeleteImportBatchesByStatus(ctx, status)
		if err != nil {
			return total, eris.Wrap(err, "batch: cleanup")
		}
		total += n
	}
	t.log.Info("cleaned up import batches", zap.Int("deleted", total))
	return total, nil
}
