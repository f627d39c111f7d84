// Package importer turns incoming business records into businesses, their
// source records and companion content, skipping duplicates of existing
// listings.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/business"
	"github.com/sells-group/bizdir/internal/metrics"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/store"
	"github.com/sells-group/bizdir/internal/waterfall"
	"github.com/sells-group/bizdir/pkg/phone"
)

// DefaultConfidence is the confidence given to every imported field value.
const DefaultConfidence = 85

// maxSlugSuffix bounds the search for a free slug.
const maxSlugSuffix = 100

// Options controls one Import call.
type Options struct {
	// SkipDuplicates drops records that match an existing business.
	SkipDuplicates bool           `json:"skip_duplicates"`
	ImportSource   string         `json:"import_source"`
	ImportBatchID  string         `json:"import_batch_id,omitempty"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

// DefaultOptions skips duplicates and attributes data to CSV uploads.
func DefaultOptions() Options {
	return Options{SkipDuplicates: true, ImportSource: waterfall.SourceCSVUpload}
}

// Result tallies one Import call.
type Result struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
	// CreatedIDs maps the index of each imported record to its business id.
	CreatedIDs map[int]string `json:"-"`
}

// Importer creates businesses from records one at a time.
type Importer struct {
	store      store.Store
	resolver   *business.Resolver
	recorder   *provenance.Recorder
	validate   *validator.Validate
	metrics    *metrics.Metrics
	confidence float64
	now        func() time.Time
	log        *zap.Logger
}

// New creates an Importer writing through st and seeding source records with rec.
func New(st store.Store, rec *provenance.Recorder) *Importer {
	return &Importer{
		store:      st,
		resolver:   business.NewResolver(st),
		recorder:   rec,
		validate:   validator.New(),
		confidence: DefaultConfidence,
		now:        func() time.Time { return time.Now().UTC() },
		log:        zap.L().With(zap.String("component", "importer")),
	}
}

// WithMetrics records per-record outcomes on m.
func (im *Importer) WithMetrics(m *metrics.Metrics) *Importer {
	im.metrics = m
	return im
}

// WithConfidence overrides the confidence of seeded contributions.
func (im *Importer) WithConfidence(c float64) *Importer {
	if c > 0 {
		im.confidence = c
	}
	return im
}

// WithNow overrides the clock.
func (im *Importer) WithNow(now func() time.Time) *Importer {
	im.now = now
	return im
}

// Import processes records in order. A failing record is reported in the
// result and never stops the rest; only a cancelled context ends the run early.
func (im *Importer) Import(ctx context.Context, records []model.BusinessRecord, opts Options) (*Result, error) {
	if opts.ImportSource == "" {
		opts.ImportSource = waterfall.SourceCSVUpload
	}
	res := &Result{Errors: []string{}, CreatedIDs: make(map[int]string)}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "importer: import cancelled")
		}
		rec := &records[i]

		id, skipped, err := im.importOne(ctx, rec, opts)
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rec.Name, err))
			im.metrics.RecordImport(metrics.OutcomeFailed)
			im.log.Warn("record import failed", zap.Int("index", i), zap.String("name", rec.Name), zap.Error(err))
		case skipped:
			res.Skipped++
			im.metrics.RecordImport(metrics.OutcomeSkipped)
		default:
			res.Successful++
			res.CreatedIDs[i] = id
			im.metrics.RecordImport(metrics.OutcomeCreated)
		}
	}

	im.log.Info("import finished",
		zap.String("batch_id", opts.ImportBatchID),
		zap.String("source", opts.ImportSource),
		zap.Int("successful", res.Successful),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (im *Importer) importOne(ctx context.Context, rec *model.BusinessRecord, opts Options) (id string, skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("importer: panic: %v", r)
		}
	}()

	if err := im.validate.Struct(rec); err != nil {
		return "", false, eris.Wrap(err, "importer: invalid record")
	}

	if opts.SkipDuplicates {
		dup, err := im.resolver.FindDuplicate(ctx, business.RecordIdentity(rec))
		if err != nil {
			return "", false, err
		}
		if dup != nil {
			im.log.Debug("duplicate skipped", zap.String("name", rec.Name), zap.String("existing_id", dup.ID))
			return "", true, nil
		}
	}

	normalized := *rec
	normalized.Phone = phone.NormalizeOrKeep(rec.Phone, phone.DefaultRegion)
	base := rec.Slug
	if base == "" {
		base = business.DeriveSlug(rec.Name, rec.City)
	}
	slug, err := im.freeSlug(ctx, base)
	if err != nil {
		return "", false, err
	}
	normalized.Slug = slug
	if normalized.URLPath == "" {
		normalized.URLPath = business.URLPath(rec.State, rec.City, normalized.Slug)
	}

	b := im.newBusiness(&normalized, opts)
	if err := im.store.CreateBusiness(ctx, b); err != nil {
		return "", false, err
	}

	fields, err := business.RecordFields(&normalized)
	if err != nil {
		return b.ID, false, err
	}
	meta := map[string]any{"import_batch_id": opts.ImportBatchID}
	if err := im.recorder.Seed(ctx, b.ID, fields, opts.ImportSource, im.confidence, meta); err != nil {
		return b.ID, false, err
	}

	content := &model.BusinessContent{
		ID:         uuid.NewString(),
		BusinessID: b.ID,
		Sections:   map[string]string{},
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.CreatedAt,
	}
	if err := im.store.CreateContent(ctx, content); err != nil {
		return b.ID, false, err
	}
	return b.ID, false, nil
}

// freeSlug returns base, or base with the lowest numeric suffix not yet taken.
func (im *Importer) freeSlug(ctx context.Context, base string) (string, error) {
	if base == "" {
		return "", eris.New("importer: cannot derive slug")
	}
	for n := 1; n <= maxSlugSuffix; n++ {
		slug := base
		if n > 1 {
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		existing, err := im.store.GetBusinessBySlug(ctx, slug)
		if err != nil {
			return "", eris.Wrap(err, "importer: check slug")
		}
		if existing == nil {
			return slug, nil
		}
	}
	return "", eris.Errorf("importer: no free slug for %q", base)
}

func (im *Importer) newBusiness(r *model.BusinessRecord, opts Options) *model.Business {
	now := im.now()
	return &model.Business{
		ID:               uuid.NewString(),
		Name:             r.Name,
		Slug:             r.Slug,
		URLPath:          r.URLPath,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Phone:            r.Phone,
		Email:            r.Email,
		Website:          r.Website,
		Address:          r.Address,
		City:             r.City,
		State:            r.State,
		Zip:              r.Zip,
		Coordinates:      r.Coordinates,
		CategoryID:       r.CategoryID,
		Services:         r.Services,
		Hours:            r.Hours,
		Rating:           r.Rating,
		ReviewCount:      r.ReviewCount,
		SocialLinks:      r.SocialLinks,
		GMBPlaceID:       r.GMBPlaceID,
		GMBURL:           r.GMBURL,
		PlanTier:         model.PlanFree,
		Active:           true,
		DataSource: model.DataSource{
			Primary:    opts.ImportSource,
			LastSyncAt: now,
			SyncStatus: model.SyncStatusSynced,
			Metadata: model.DataSourceMetadata{
				ImportBatchID: opts.ImportBatchID,
				ImportSource:  opts.ImportSource,
				Extra:         opts.SourceMetadata,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
