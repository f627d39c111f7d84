// Package monitoring watches import health and posts webhook alerts when
// batch failures, stuck batches or low validation scores cross thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
)

const scanLimit = 1000

// Snapshot is a point-in-time view of import health.
type Snapshot struct {
	// Import batches started within the lookback window.
	BatchesTotal     int     `json:"batches_total"`
	BatchesCompleted int     `json:"batches_completed"`
	BatchesFailed    int     `json:"batches_failed"`
	BatchesPending   int     `json:"batches_pending"`
	BatchFailRate    float64 `json:"batch_fail_rate"`
	StalePending     int     `json:"stale_pending"`

	RecordsTotal    int     `json:"records_total"`
	RecordsFailed   int     `json:"records_failed"`
	RecordErrorRate float64 `json:"record_error_rate"`

	// Validation runs started within the lookback window.
	ValidationsRun     int     `json:"validations_run"`
	ValidationsFailed  int     `json:"validations_failed"`
	AvgValidationScore float64 `json:"avg_validation_score"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the store.
type Collector struct {
	store      store.Store
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. Pending batches older than staleAfter
// count as stale.
func NewCollector(st store.Store, staleAfter time.Duration) *Collector {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Collector{store: st, staleAfter: staleAfter, now: time.Now}
}

// WithNow overrides the clock.
func (c *Collector) WithNow(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect builds a snapshot over the last lookbackHours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	batches, err := c.store.ListImportBatches(ctx, store.BatchFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list import batches")
	}
	for _, b := range batches {
		// Newest first.
		if b.ImportedAt.Before(cutoff) {
			break
		}
		snap.BatchesTotal++
		switch b.Status {
		case model.BatchStatusCompleted:
			snap.BatchesCompleted++
		case model.BatchStatusFailed:
			snap.BatchesFailed++
		case model.BatchStatusPending:
			snap.BatchesPending++
			if now.Sub(b.ImportedAt) > c.staleAfter {
				snap.StalePending++
			}
		}
		if b.Results != nil {
			snap.RecordsTotal += b.Results.Total()
			snap.RecordsFailed += b.Results.Failed
		}
	}
	if finished := snap.BatchesCompleted + snap.BatchesFailed; finished > 0 {
		snap.BatchFailRate = float64(snap.BatchesFailed) / float64(finished)
	}
	if snap.RecordsTotal > 0 {
		snap.RecordErrorRate = float64(snap.RecordsFailed) / float64(snap.RecordsTotal)
	}

	runs, err := c.store.ListValidationResults(ctx, "", scanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list validation results")
	}
	var scoreSum int
	for _, v := range runs {
		if v.StartedAt.Before(cutoff) {
			break
		}
		switch v.Status {
		case model.ValidationCompleted:
			snap.ValidationsRun++
			scoreSum += v.OverallScore
		case model.ValidationFailed:
			snap.ValidationsRun++
			snap.ValidationsFailed++
		}
	}
	if scored := snap.ValidationsRun - snap.ValidationsFailed; scored > 0 {
		snap.AvgValidationScore = float64(scoreSum) / float64(scored)
	}

	return snap, nil
}
