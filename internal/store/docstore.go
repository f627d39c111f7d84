package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/business"
	"github.com/sells-group/bizdir/internal/model"
)

// ErrNotFound is returned by updates that target a missing document.
var ErrNotFound = eris.New("store: not found")

// backend is the dialect-specific document storage primitive.
type backend interface {
	put(ctx context.Context, table string, row docRow) error
	insertMany(ctx context.Context, table string, rows []docRow) error
	get(ctx context.Context, table, id string) ([]byte, error)
	find(ctx context.Context, table string, q query) ([][]byte, error)
	count(ctx context.Context, table string, q query) (int, error)
	remove(ctx context.Context, table string, q query) (int, error)
	migrate(ctx context.Context) error
	close() error
}

// DocStore implements Store on top of a document backend.
type DocStore struct {
	b backend
}

var _ Store = (*DocStore)(nil)

func newDocStore(b backend) *DocStore {
	return &DocStore{b: b}
}

// Migrate creates all collections and indexes.
func (s *DocStore) Migrate(ctx context.Context) error {
	return s.b.migrate(ctx)
}

// Close releases the underlying connection(s).
func (s *DocStore) Close() error {
	return s.b.close()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func encode(table, id string, cols map[string]any, v any) (docRow, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return docRow{}, eris.Wrapf(err, "store: marshal %s %s", table, id)
	}
	return docRow{ID: id, Cols: cols, Doc: doc}, nil
}

func getDoc[T any](ctx context.Context, b backend, table, id string) (*T, error) {
	doc, err := b.get(ctx, table, id)
	if err != nil || doc == nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal %s %s", table, id)
	}
	return &v, nil
}

func findDocs[T any](ctx context.Context, b backend, table string, q query) ([]T, error) {
	docs, err := b.find(ctx, table, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal %s", table)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *DocStore) exists(ctx context.Context, table, id string) (bool, error) {
	doc, err := s.b.get(ctx, table, id)
	return doc != nil, err
}

// --- Businesses ---

func businessRow(b *model.Business) (docRow, error) {
	return encode(tableBusinesses, b.ID, map[string]any{
		"slug":            b.Slug,
		"name_key":        business.NormalizeKey(b.Name),
		"import_batch_id": b.DataSource.Metadata.ImportBatchID,
		"primary_source":  b.DataSource.Primary,
		"created_at":      millis(b.CreatedAt),
	}, b)
}

// CreateBusiness inserts a new business. ID and timestamps must already be set.
func (s *DocStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	if b.ID == "" {
		return eris.New("store: create business: missing id")
	}
	row, err := businessRow(b)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableBusinesses, row), "store: create business")
}

// UpdateBusiness replaces an existing business and bumps UpdatedAt.
func (s *DocStore) UpdateBusiness(ctx context.Context, b *model.Business) error {
	ok, err := s.exists(ctx, tableBusinesses, b.ID)
	if err != nil {
		return eris.Wrap(err, "store: update business")
	}
	if !ok {
		return eris.Wrapf(ErrNotFound, "store: update business %s", b.ID)
	}
	b.UpdatedAt = time.Now().UTC()
	row, err := businessRow(b)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableBusinesses, row), "store: update business")
}

// GetBusiness returns the business or nil if it does not exist.
func (s *DocStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	return getDoc[model.Business](ctx, s.b, tableBusinesses, id)
}

// GetBusinessBySlug returns the oldest business with the slug, or nil.
func (s *DocStore) GetBusinessBySlug(ctx context.Context, slug string) (*model.Business, error) {
	q := where(eq("slug", slug))
	q.orderBy, q.limit = "created_at", 1
	list, err := findDocs[model.Business](ctx, s.b, tableBusinesses, q)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// FindByNameKey returns businesses whose normalized name equals key, oldest first.
func (s *DocStore) FindByNameKey(ctx context.Context, key string) ([]model.Business, error) {
	return s.ListBusinesses(ctx, BusinessFilter{NameKey: key})
}

func businessQuery(f BusinessFilter) query {
	var q query
	if f.ImportBatchID != "" {
		q.conds = append(q.conds, eq("import_batch_id", f.ImportBatchID))
	}
	if f.NoImportBatch {
		q.conds = append(q.conds, eq("import_batch_id", ""))
	}
	if f.PrimarySource != "" {
		q.conds = append(q.conds, eq("primary_source", f.PrimarySource))
	}
	if f.NameKey != "" {
		q.conds = append(q.conds, eq("name_key", f.NameKey))
	}
	if !f.CreatedAfter.IsZero() {
		q.conds = append(q.conds, cond{col: "created_at", op: ">=", val: millis(f.CreatedAfter)})
	}
	if !f.CreatedBefore.IsZero() {
		q.conds = append(q.conds, cond{col: "created_at", op: "<=", val: millis(f.CreatedBefore)})
	}
	return q
}

// ListBusinesses returns businesses matching the filter, oldest first.
func (s *DocStore) ListBusinesses(ctx context.Context, f BusinessFilter) ([]model.Business, error) {
	q := businessQuery(f)
	q.orderBy = "created_at"
	q.limit, q.offset = f.Limit, f.Offset
	return findDocs[model.Business](ctx, s.b, tableBusinesses, q)
}

// CountBusinesses counts businesses matching the filter. Limit and Offset are ignored.
func (s *DocStore) CountBusinesses(ctx context.Context, f BusinessFilter) (int, error) {
	return s.b.count(ctx, tableBusinesses, businessQuery(f))
}

// DeleteBusiness removes a business with its content, source records and review tags.
func (s *DocStore) DeleteBusiness(ctx context.Context, id string) error {
	for _, table := range []string{tableContent, tableSources, tableReviewTags, tableReviews} {
		if _, err := s.b.remove(ctx, table, where(eq("business_id", id))); err != nil {
			return eris.Wrapf(err, "store: delete business %s", id)
		}
	}
	_, err := s.b.remove(ctx, tableBusinesses, where(eq("id", id)))
	return eris.Wrapf(err, "store: delete business %s", id)
}

// --- Content ---

// CreateContent inserts the companion content document for a business.
func (s *DocStore) CreateContent(ctx context.Context, c *model.BusinessContent) error {
	row, err := encode(tableContent, c.ID, map[string]any{"business_id": c.BusinessID}, c)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableContent, row), "store: create content")
}

// HasContent reports whether a content document exists for the business.
func (s *DocStore) HasContent(ctx context.Context, businessID string) (bool, error) {
	n, err := s.b.count(ctx, tableContent, where(eq("business_id", businessID)))
	return n > 0, err
}

// --- Source records ---

// SourceRecordID is the deterministic document id for a business field.
func SourceRecordID(businessID, field string) string {
	return businessID + ":" + field
}

func sourceRow(r *model.SourceRecord) (docRow, error) {
	if r.ID == "" {
		r.ID = SourceRecordID(r.BusinessID, r.Field)
	}
	return encode(tableSources, r.ID, map[string]any{
		"business_id": r.BusinessID,
		"field":       r.Field,
	}, r)
}

// GetSourceRecord returns the record for a business field, or nil.
func (s *DocStore) GetSourceRecord(ctx context.Context, businessID, field string) (*model.SourceRecord, error) {
	return getDoc[model.SourceRecord](ctx, s.b, tableSources, SourceRecordID(businessID, field))
}

// PutSourceRecord creates or replaces a source record.
func (s *DocStore) PutSourceRecord(ctx context.Context, r *model.SourceRecord) error {
	row, err := sourceRow(r)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableSources, row), "store: put source record")
}

// InsertSourceRecords bulk-inserts new source records.
func (s *DocStore) InsertSourceRecords(ctx context.Context, recs []model.SourceRecord) error {
	rows := make([]docRow, 0, len(recs))
	for i := range recs {
		row, err := sourceRow(&recs[i])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return eris.Wrap(s.b.insertMany(ctx, tableSources, rows), "store: insert source records")
}

// ListSourceRecords returns every source record of a business.
func (s *DocStore) ListSourceRecords(ctx context.Context, businessID string) ([]model.SourceRecord, error) {
	q := where(eq("business_id", businessID))
	q.orderBy = "field"
	return findDocs[model.SourceRecord](ctx, s.b, tableSources, q)
}

// CountSourceRecords counts the source records of a business.
func (s *DocStore) CountSourceRecords(ctx context.Context, businessID string) (int, error) {
	return s.b.count(ctx, tableSources, where(eq("business_id", businessID)))
}

// --- Import batches ---

func batchRow(b *model.ImportBatch) (docRow, error) {
	return encode(tableBatches, b.ID, map[string]any{
		"status":      string(b.Status),
		"imported_at": millis(b.ImportedAt),
	}, b)
}

// CreateImportBatch inserts a new batch.
func (s *DocStore) CreateImportBatch(ctx context.Context, b *model.ImportBatch) error {
	row, err := batchRow(b)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableBatches, row), "store: create import batch")
}

// UpdateImportBatch replaces an existing batch.
func (s *DocStore) UpdateImportBatch(ctx context.Context, b *model.ImportBatch) error {
	ok, err := s.exists(ctx, tableBatches, b.ID)
	if err != nil {
		return eris.Wrap(err, "store: update import batch")
	}
	if !ok {
		return eris.Wrapf(ErrNotFound, "store: update import batch %s", b.ID)
	}
	row, err := batchRow(b)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableBatches, row), "store: update import batch")
}

// GetImportBatch returns the batch or nil.
func (s *DocStore) GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error) {
	return getDoc[model.ImportBatch](ctx, s.b, tableBatches, id)
}

// ListImportBatches returns batches newest first.
func (s *DocStore) ListImportBatches(ctx context.Context, f BatchFilter) ([]model.ImportBatch, error) {
	var q query
	if f.Status != "" {
		q.conds = append(q.conds, eq("status", string(f.Status)))
	}
	q.orderBy, q.desc, q.limit = "imported_at", true, f.Limit
	return findDocs[model.ImportBatch](ctx, s.b, tableBatches, q)
}

// DeleteImportBatch removes a batch and reports whether it existed.
func (s *DocStore) DeleteImportBatch(ctx context.Context, id string) (bool, error) {
	n, err := s.b.remove(ctx, tableBatches, where(eq("id", id)))
	return n > 0, eris.Wrapf(err, "store: delete import batch %s", id)
}

// DeleteImportBatchesByStatus removes every batch in status.
func (s *DocStore) DeleteImportBatchesByStatus(ctx context.Context, status model.BatchStatus) (int, error) {
	n, err := s.b.remove(ctx, tableBatches, where(eq("status", string(status))))
	return n, eris.Wrapf(err, "store: delete %s import batches", status)
}

// --- Validation results ---

// SaveValidationResults stores a validation run.
func (s *DocStore) SaveValidationResults(ctx context.Context, v *model.ValidationResults) error {
	row, err := encode(tableValidations, v.ID, map[string]any{
		"batch_id":   v.BatchID,
		"started_at": millis(v.StartedAt),
	}, v)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableValidations, row), "store: save validation results")
}

// ListValidationResults returns runs newest first, optionally for one batch.
func (s *DocStore) ListValidationResults(ctx context.Context, batchID string, limit int) ([]model.ValidationResults, error) {
	var q query
	if batchID != "" {
		q.conds = append(q.conds, eq("batch_id", batchID))
	}
	q.orderBy, q.desc, q.limit = "started_at", true, limit
	return findDocs[model.ValidationResults](ctx, s.b, tableValidations, q)
}

// --- Categories ---

// PutCategory creates or replaces a category.
func (s *DocStore) PutCategory(ctx context.Context, c *model.Category) error {
	row, err := encode(tableCategories, c.ID, map[string]any{"slug": c.Slug}, c)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableCategories, row), "store: put category")
}

// GetCategory returns the category or nil.
func (s *DocStore) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	return getDoc[model.Category](ctx, s.b, tableCategories, id)
}

// --- Cache markers ---

// GetCacheEntry returns the cache marker or nil.
func (s *DocStore) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	return getDoc[model.CacheEntry](ctx, s.b, tableCache, key)
}

// PutCacheEntry creates or replaces a cache marker.
func (s *DocStore) PutCacheEntry(ctx context.Context, e *model.CacheEntry) error {
	row, err := encode(tableCache, e.Key, nil, e)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableCache, row), "store: put cache entry")
}

// --- Reviews ---

// CreateReview inserts a review.
func (s *DocStore) CreateReview(ctx context.Context, r *model.Review) error {
	row, err := encode(tableReviews, r.ID, map[string]any{
		"business_id": r.BusinessID,
		"created_at":  millis(r.CreatedAt),
	}, r)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableReviews, row), "store: create review")
}

// ListReviews returns one page of a business's reviews, newest first.
func (s *DocStore) ListReviews(ctx context.Context, businessID string, offset, limit int) ([]model.Review, error) {
	q := where(eq("business_id", businessID))
	q.orderBy, q.desc, q.limit, q.offset = "created_at", true, limit, offset
	return findDocs[model.Review](ctx, s.b, tableReviews, q)
}

// ReviewTagID is the deterministic document id for a (review, business) pair.
func ReviewTagID(reviewID, businessID string) string {
	return reviewID + ":" + businessID
}

// GetReviewTag returns the analysis tag for a review, or nil.
func (s *DocStore) GetReviewTag(ctx context.Context, reviewID, businessID string) (*model.ReviewTag, error) {
	return getDoc[model.ReviewTag](ctx, s.b, tableReviewTags, ReviewTagID(reviewID, businessID))
}

// PutReviewTag creates or replaces an analysis tag.
func (s *DocStore) PutReviewTag(ctx context.Context, t *model.ReviewTag) error {
	t.ID = ReviewTagID(t.ReviewID, t.BusinessID)
	row, err := encode(tableReviewTags, t.ID, map[string]any{
		"business_id": t.BusinessID,
		"review_id":   t.ReviewID,
	}, t)
	if err != nil {
		return err
	}
	return eris.Wrap(s.b.put(ctx, tableReviewTags, row), "store: put review tag")
}

// ListReviewTags returns every analysis tag of a business.
func (s *DocStore) ListReviewTags(ctx context.Context, businessID string) ([]model.ReviewTag, error) {
	q := where(eq("business_id", businessID))
	q.orderBy = "review_id"
	return findDocs[model.ReviewTag](ctx, s.b, tableReviewTags, q)
}
