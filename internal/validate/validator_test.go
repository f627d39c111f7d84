package validate

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bizdir/internal/batch"
	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/store"
)

var t0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.DocStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.PutCategory(context.Background(), &model.Category{ID: "plumbing", Name: "Plumbing", Slug: "plumbing"}))
	return st
}

func newTestValidator(st store.Store) *Validator {
	return New(st).
		WithRand(rand.New(rand.NewPCG(1, 2))).
		WithNow(func() time.Time { return t0.Add(time.Hour) })
}

func records() []model.BusinessRecord {
	return []model.BusinessRecord{
		{Name: "Joe's Plumbing", Address: "123 Main St", City: "Mesa", State: "AZ", Phone: "(480) 555-0100", CategoryID: "plumbing"},
		{Name: "Desert Drains", Address: "9 Palm Ave", City: "Tempe", State: "AZ", Phone: "(480) 555-0111", CategoryID: "plumbing", Zip: "85281"},
		{Name: "Pipe Pros", Address: "77 Elm St", City: "Phoenix", State: "AZ", Phone: "(602) 555-0199", CategoryID: "plumbing", Website: "https://pipepros.example"},
	}
}

// importBatch runs recs through the tracked importer and returns the batch id.
func importBatch(t *testing.T, st *store.DocStore, recs []model.BusinessRecord) string {
	t.Helper()
	clock := func() time.Time { return t0 }
	rec := provenance.NewRecorder(st, nil).WithNow(clock)
	im := importer.New(st, rec).WithNow(clock)
	tr := batch.NewTracker(st).WithNow(clock)

	out, err := importer.NewRunner(st, im, tr).Run(context.Background(), recs, importer.RunOptions{
		Type: "csv", ImportedBy: "admin", Source: "csv_upload",
	})
	require.NoError(t, err)
	return out.Batch.ID
}

func check(t *testing.T, cr model.CategoryResult, name string) model.Check {
	t.Helper()
	for _, c := range cr.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found in %+v", name, cr.Checks)
	return model.Check{}
}

func assertBounded(t *testing.T, res *model.ValidationResults) {
	t.Helper()
	var sum float64
	for _, c := range res.Categories() {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 100.0)
		sum += c.Score
	}
	assert.Equal(t, int(math.Round(sum/6)), res.OverallScore)
	assert.GreaterOrEqual(t, res.OverallScore, 0)
	assert.LessOrEqual(t, res.OverallScore, 100)
}

func TestRun_CleanImportScoresFull(t *testing.T) {
	st := newTestStore(t)
	id := importBatch(t, st, records())
	ctx := context.Background()

	res, err := newTestValidator(st).Run(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationCompleted, res.Status)
	for i, c := range res.Categories() {
		assert.Equal(t, 100.0, c.Score, "category %d: %+v", i, c.Checks)
		assert.True(t, c.Passed)
	}
	assert.Equal(t, 100, res.OverallScore)
	assert.False(t, res.SEOCompliance.Skipped)
	assert.Len(t, res.SampleBusinesses, 3)
	assert.Equal(t, []string{"Import is ready for production"}, res.Recommendations)
	require.NotNil(t, res.CompletedAt)

	stored, err := newTestValidator(st).List(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, res.ID, stored[0].ID)
	assert.Equal(t, 100, stored[0].OverallScore)
}

func TestRun_MissingPhoneIsCompletenessNotFormat(t *testing.T) {
	st := newTestStore(t)
	recs := records()
	recs[0].Phone = ""
	id := importBatch(t, st, recs)

	res, err := newTestValidator(st).Run(context.Background(), id, false)
	require.NoError(t, err)

	dq := res.DataQuality
	assert.False(t, check(t, dq, "Required Fields").Passed)
	assert.Less(t, dq.Metrics["required_fields_pct"], 100.0)
	assert.Equal(t, 0.0, dq.Metrics["format_violations_phone"])
	assert.True(t, check(t, dq, "Format Compliance").Passed)
	assert.InDelta(t, 40*20.0/21+30+30, dq.Score, 0.1)
	assertBounded(t, res)
}

func TestRun_BusinessCountMismatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	done := t0.Add(30 * time.Second)
	b := &model.ImportBatch{
		ID: "b-mismatch", Type: "csv", Source: "csv_upload", BusinessCount: 8,
		Status: model.BatchStatusCompleted, Results: &model.BatchResults{Created: 8},
		ImportedAt: t0, CompletedAt: &done,
	}
	require.NoError(t, st.CreateImportBatch(ctx, b))
	for i := range 10 {
		biz := &model.Business{
			ID: fmt.Sprintf("biz-%d", i), Name: fmt.Sprintf("Biz %d", i), Slug: fmt.Sprintf("biz-%d", i),
			CreatedAt: t0, UpdatedAt: t0,
		}
		biz.DataSource.Metadata.ImportBatchID = b.ID
		require.NoError(t, st.CreateBusiness(ctx, biz))
	}

	res, err := newTestValidator(st).Run(ctx, b.ID, false)
	require.NoError(t, err)

	c := check(t, res.DatabaseIntegrity, "Business Count Verification")
	assert.False(t, c.Passed)
	assert.Contains(t, c.Message, "found 10 businesses, batch reports 8 created")
	assert.Less(t, res.DatabaseIntegrity.Score, 100.0)
	assert.False(t, res.DatabaseIntegrity.Passed)
	assert.Contains(t, res.Recommendations[0], "database cleanup")
	assert.Len(t, res.SampleBusinesses, 10)
	assertBounded(t, res)
}

func TestRun_SEOSkippedWithoutFullValidation(t *testing.T) {
	st := newTestStore(t)
	id := importBatch(t, st, records())

	res, err := newTestValidator(st).Run(context.Background(), id, false)
	require.NoError(t, err)
	assert.True(t, res.SEOCompliance.Skipped)
	assert.Equal(t, 100.0, res.SEOCompliance.Score)
	assert.True(t, res.SEOCompliance.Passed)
}

func TestRun_SEOFlagsMalformedPaths(t *testing.T) {
	st := newTestStore(t)
	recs := records()
	recs[0].URLPath = "/Joes Plumbing"
	id := importBatch(t, st, recs)

	res, err := newTestValidator(st).Run(context.Background(), id, true)
	require.NoError(t, err)
	assert.False(t, check(t, res.SEOCompliance, "URL Path Structure").Passed)
	assert.True(t, check(t, res.SEOCompliance, "Slug Format").Passed)
	assert.InDelta(t, 50*2.0/3+50, res.SEOCompliance.Score, 0.1)
}

func TestRun_MissingBatch(t *testing.T) {
	st := newTestStore(t)
	v := newTestValidator(st)

	_, err := v.Run(context.Background(), "nope", true)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	list, err := v.List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRun_PendingBatchFailsSitemapAndPerformance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	b, err := batch.NewTracker(st).Create(ctx, batch.NewBatch{Source: "csv_upload"})
	require.NoError(t, err)

	res, err := newTestValidator(st).Run(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.SitemapIntegration.Score)
	assert.Equal(t, 0.0, res.Performance.Score)
	assert.Equal(t, 0.0, res.DataQuality.Score)
	assert.Empty(t, res.SampleBusinesses)
	assert.Contains(t, res.Recommendations, "Hold this import back until the issues above are fixed")
	assertBounded(t, res)
}

type panickyStore struct {
	store.Store
}

func (panickyStore) HasContent(context.Context, string) (bool, error) {
	panic("content index corrupted")
}

func TestRun_CategoryPanicIsContained(t *testing.T) {
	st := newTestStore(t)
	id := importBatch(t, st, records())

	res, err := newTestValidator(panickyStore{st}).Run(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationCompleted, res.Status)

	di := res.DatabaseIntegrity
	assert.False(t, di.Passed)
	assert.Equal(t, 25.0, di.Score)
	exec := check(t, di, "execution")
	assert.False(t, exec.Passed)
	assert.Contains(t, exec.Message, "content index corrupted")

	assert.Equal(t, 100.0, res.DataQuality.Score)
	assert.Equal(t, 100.0, res.Performance.Score)
}

type brokenListStore struct {
	store.Store
}

func (brokenListStore) ListBusinesses(context.Context, store.BusinessFilter) ([]model.Business, error) {
	return nil, eris.New("connection lost")
}

func TestRun_TopLevelFailureIsPersisted(t *testing.T) {
	st := newTestStore(t)
	id := importBatch(t, st, records())
	ctx := context.Background()

	res, err := newTestValidator(brokenListStore{st}).Run(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection lost")

	stored, err := st.ListValidationResults(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.ValidationFailed, stored[0].Status)
}

func TestPickSample(t *testing.T) {
	v := newTestValidator(nil)
	var pool []model.Business
	for i := range 150 {
		pool = append(pool, model.Business{ID: fmt.Sprintf("b%d", i)})
	}

	got := v.pickSample(pool)
	require.Len(t, got, sampleSize)
	seen := map[string]bool{}
	for _, b := range got {
		assert.False(t, seen[b.ID], "drawn twice: %s", b.ID)
		seen[b.ID] = true
		var n int
		_, err := fmt.Sscanf(b.ID, "b%d", &n)
		require.NoError(t, err)
		assert.Less(t, n, samplePool)
	}

	assert.Len(t, v.pickSample(pool[:4]), 4)
	assert.Empty(t, v.pickSample(nil))
}

func TestPickSample_ConcurrentCallers(t *testing.T) {
	v := newTestValidator(nil)
	var pool []model.Business
	for i := range 40 {
		pool = append(pool, model.Business{ID: fmt.Sprintf("b%d", i)})
	}

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for range 100 {
				if got := v.pickSample(pool); len(got) != sampleSize {
					return fmt.Errorf("sample size %d", len(got))
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestRun_ConcurrentRunsShareValidator(t *testing.T) {
	st := newTestStore(t)
	id := importBatch(t, st, records())
	ctx := context.Background()
	v := newTestValidator(st)

	const runs = 8
	results := make([]*model.ValidationResults, runs)
	g, gctx := errgroup.WithContext(ctx)
	for i := range runs {
		g.Go(func() error {
			res, err := v.Run(gctx, id, true)
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	ids := map[string]bool{}
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, 100, res.OverallScore)
		assert.Len(t, res.SampleBusinesses, 3)
		ids[res.ID] = true
	}
	assert.Len(t, ids, runs)

	stored, err := v.List(ctx, id, 0)
	require.NoError(t, err)
	assert.Len(t, stored, runs)
}
