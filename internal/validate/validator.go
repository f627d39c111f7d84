// Package validate audits a finished import batch across six categories and
// persists a scored report with recommendations.
package validate

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/batch"
	"github.com/sells-group/bizdir/internal/metrics"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
)

// ErrBatchNotFound is returned when the batch to validate does not exist.
var ErrBatchNotFound = batch.ErrBatchNotFound

const (
	samplePool     = 100
	sampleSize     = 10
	functionalSize = 5
	passThreshold  = 75.0
)

// Validator runs validation passes against import batches.
type Validator struct {
	store   store.Store
	metrics *metrics.Metrics
	now     func() time.Time
	log     *zap.Logger

	// rngMu guards rng; one Validator serves concurrent API requests.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Validator.
func New(st store.Store) *Validator {
	return &Validator{
		store: st,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:   func() time.Time { return time.Now().UTC() },
		log:   zap.L().With(zap.String("component", "validate")),
	}
}

// WithRand sets the source used to sample businesses.
func (v *Validator) WithRand(r *rand.Rand) *Validator {
	v.rng = r
	return v
}

// WithNow overrides the clock used for run timestamps.
func (v *Validator) WithNow(now func() time.Time) *Validator {
	v.now = now
	return v
}

// WithMetrics records run outcomes on m.
func (v *Validator) WithMetrics(m *metrics.Metrics) *Validator {
	v.metrics = m
	return v
}

// run is the state shared by the category checks of one validation pass.
type run struct {
	batch      *model.ImportBatch
	businesses []model.Business
	sample     []model.Business
	full       bool
}

// Run validates batchID and stores the result. A missing batch returns
// ErrBatchNotFound and stores nothing. When the batch's businesses cannot be
// loaded the run is stored with status failed.
func (v *Validator) Run(ctx context.Context, batchID string, full bool) (*model.ValidationResults, error) {
	b, err := v.store.GetImportBatch(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: get batch %s", batchID)
	}
	if b == nil {
		return nil, eris.Wrapf(ErrBatchNotFound, "validate: batch %s", batchID)
	}

	res := &model.ValidationResults{
		ID:                uuid.NewString(),
		BatchID:           batchID,
		RunFullValidation: full,
		Status:            model.ValidationRunning,
		SampleBusinesses:  []model.SampleBusiness{},
		Recommendations:   []string{},
		StartedAt:         v.now(),
	}
	log := v.log.With(zap.String("batch_id", batchID), zap.String("validation_id", res.ID))

	businesses, err := v.store.ListBusinesses(ctx, store.BusinessFilter{ImportBatchID: batchID})
	if err != nil {
		log.Error("validation failed", zap.Error(err))
		return v.finish(ctx, res, model.ValidationFailed, eris.Wrap(err, "validate: load businesses").Error())
	}

	r := &run{batch: b, businesses: businesses, full: full}
	r.sample = v.pickSample(businesses)
	for _, s := range r.sample {
		res.SampleBusinesses = append(res.SampleBusinesses, model.SampleBusiness{ID: s.ID, Name: s.Name, Slug: s.Slug, URLPath: s.URLPath})
	}

	v.category(ctx, "database integrity", &res.DatabaseIntegrity, r, v.databaseIntegrity)
	v.category(ctx, "data quality", &res.DataQuality, r, v.dataQuality)
	v.category(ctx, "seo compliance", &res.SEOCompliance, r, v.seoCompliance)
	v.category(ctx, "sitemap integration", &res.SitemapIntegration, r, v.sitemapIntegration)
	v.category(ctx, "functional systems", &res.FunctionalSystems, r, v.functionalSystems)
	v.category(ctx, "performance", &res.Performance, r, v.performance)

	res.OverallScore = overallScore(res)
	res.Recommendations = recommendations(res)

	log.Info("validation finished", zap.Int("overall_score", res.OverallScore), zap.Int("businesses", len(businesses)))
	return v.finish(ctx, res, model.ValidationCompleted, "")
}

func (v *Validator) finish(ctx context.Context, res *model.ValidationResults, status model.ValidationStatus, errMsg string) (*model.ValidationResults, error) {
	now := v.now()
	res.Status = status
	res.CompletedAt = &now
	if errMsg != "" {
		res.Errors = append(res.Errors, errMsg)
	}
	if err := v.store.SaveValidationResults(ctx, res); err != nil {
		return res, eris.Wrap(err, "validate: save results")
	}
	v.metrics.RecordValidation(string(status), res.OverallScore)
	return res, nil
}

// List returns stored runs newest first; an empty batchID lists every batch.
func (v *Validator) List(ctx context.Context, batchID string, limit int) ([]model.ValidationResults, error) {
	list, err := v.store.ListValidationResults(ctx, batchID, limit)
	return list, eris.Wrap(err, "validate: list results")
}

// pickSample draws up to sampleSize businesses without replacement from the
// first samplePool.
func (v *Validator) pickSample(businesses []model.Business) []model.Business {
	pool := businesses[:min(len(businesses), samplePool)]
	n := min(len(pool), sampleSize)
	v.rngMu.Lock()
	perm := v.rng.Perm(len(pool))
	v.rngMu.Unlock()

	out := make([]model.Business, 0, n)
	for _, i := range perm[:n] {
		out = append(out, pool[i])
	}
	return out
}

type checkFunc func(ctx context.Context, r *run, cr *model.CategoryResult) error

// category runs one check group. An error or panic becomes a failing
// "execution" check; points earned before it are kept.
func (v *Validator) category(ctx context.Context, name string, cr *model.CategoryResult, r *run, fn checkFunc) {
	start := time.Now()
	broken := false
	defer func() {
		if p := recover(); p != nil {
			broken = true
			cr.AddCheck("execution", false, fmt.Sprintf("%s check panicked: %v", name, p))
			v.log.Error("validation category panicked", zap.String("category", name), zap.Any("panic", p))
		}
		cr.Score = clampScore(cr.Score)
		cr.Passed = !broken && cr.Score >= passThreshold
		cr.DurationMs = time.Since(start).Milliseconds()
	}()

	if err := fn(ctx, r, cr); err != nil {
		broken = true
		cr.AddCheck("execution", false, fmt.Sprintf("%s check failed: %v", name, err))
		v.log.Warn("validation category failed", zap.String("category", name), zap.Error(err))
	}
}

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, math.Round(s*10)/10))
}

func overallScore(res *model.ValidationResults) int {
	var sum float64
	cats := res.Categories()
	for _, c := range cats {
		sum += c.Score
	}
	return int(math.Round(sum / float64(len(cats))))
}

func recommendations(res *model.ValidationResults) []string {
	var out []string
	if res.DatabaseIntegrity.Score < 75 {
		out = append(out, "Run database cleanup: business, content and source records do not reconcile with the batch")
	}
	if res.DataQuality.Score < 80 {
		out = append(out, "Complete missing required fields and correct malformed contact details")
	}
	if !res.SEOCompliance.Skipped && res.SEOCompliance.Score < 80 {
		out = append(out, "Regenerate slugs and URL paths that break the /state/city/slug pattern")
	}
	if res.SitemapIntegration.Score < 100 {
		out = append(out, "Regenerate the sitemap; it was not invalidated when the batch completed")
	}
	if res.FunctionalSystems.Score < 75 {
		out = append(out, "Check plan tier defaults, active flags and category references of imported businesses")
	}
	if res.Performance.Score < 50 {
		out = append(out, "Investigate import throughput and the batch error rate")
	}
	switch {
	case res.OverallScore >= 90:
		out = append(out, "Import is ready for production")
	case res.OverallScore >= 70:
		out = append(out, "Import is usable once the issues above are addressed")
	default:
		out = append(out, "Hold this import back until the issues above are fixed")
	}
	return out
}
