package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func addBatch(t *testing.T, st store.Store, id string, status model.BatchStatus, age time.Duration, res *model.BatchResults) {
	t.Helper()
	require.NoError(t, st.CreateImportBatch(context.Background(), &model.ImportBatch{
		ID:         id,
		Type:       "csv",
		Status:     status,
		Results:    res,
		ImportedAt: now.Add(-age),
	}))
}

func addValidation(t *testing.T, st store.Store, id string, status model.ValidationStatus, score int, age time.Duration) {
	t.Helper()
	require.NoError(t, st.SaveValidationResults(context.Background(), &model.ValidationResults{
		ID:           id,
		BatchID:      "b1",
		Status:       status,
		OverallScore: score,
		StartedAt:    now.Add(-age),
	}))
}

func TestCollector_Collect(t *testing.T) {
	st := newTestStore(t)
	addBatch(t, st, "b1", model.BatchStatusCompleted, time.Hour, &model.BatchResults{Created: 8, Failed: 2})
	addBatch(t, st, "b2", model.BatchStatusFailed, 2*time.Hour, &model.BatchResults{Failed: 5})
	addBatch(t, st, "b3", model.BatchStatusPending, 3*time.Hour, nil)
	addBatch(t, st, "b4", model.BatchStatusPending, 5*time.Minute, nil)
	addBatch(t, st, "old", model.BatchStatusFailed, 48*time.Hour, nil)

	addValidation(t, st, "v1", model.ValidationCompleted, 90, time.Hour)
	addValidation(t, st, "v2", model.ValidationCompleted, 60, 2*time.Hour)
	addValidation(t, st, "v3", model.ValidationFailed, 0, 3*time.Hour)
	addValidation(t, st, "v-old", model.ValidationCompleted, 10, 72*time.Hour)

	c := NewCollector(st, time.Hour).WithNow(func() time.Time { return now })
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.BatchesTotal)
	assert.Equal(t, 1, snap.BatchesCompleted)
	assert.Equal(t, 1, snap.BatchesFailed)
	assert.Equal(t, 2, snap.BatchesPending)
	assert.Equal(t, 1, snap.StalePending)
	assert.InDelta(t, 0.5, snap.BatchFailRate, 0.001)
	assert.Equal(t, 15, snap.RecordsTotal)
	assert.Equal(t, 7, snap.RecordsFailed)

	assert.Equal(t, 3, snap.ValidationsRun)
	assert.Equal(t, 1, snap.ValidationsFailed)
	assert.InDelta(t, 75.0, snap.AvgValidationScore, 0.001)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollector_Empty(t *testing.T) {
	c := NewCollector(newTestStore(t), 0).WithNow(func() time.Time { return now })
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.BatchesTotal)
	assert.Zero(t, snap.BatchFailRate)
	assert.Zero(t, snap.AvgValidationScore)
}
