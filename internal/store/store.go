// Package store persists businesses, source records, import batches, validation
// results and review analyses as JSON documents in SQLite or PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/sells-group/bizdir/internal/model"
)

// BusinessFilter specifies criteria for listing businesses.
type BusinessFilter struct {
	ImportBatchID string
	// NoImportBatch restricts to businesses created without a batch id.
	NoImportBatch bool
	PrimarySource string
	NameKey       string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// BatchFilter specifies criteria for listing import batches.
type BatchFilter struct {
	Status model.BatchStatus
	Limit  int
}

// Store defines the persistence interface for the directory core.
type Store interface {
	// Businesses
	CreateBusiness(ctx context.Context, b *model.Business) error
	UpdateBusiness(ctx context.Context, b *model.Business) error
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	GetBusinessBySlug(ctx context.Context, slug string) (*model.Business, error)
	FindByNameKey(ctx context.Context, key string) ([]model.Business, error)
	ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error)
	CountBusinesses(ctx context.Context, filter BusinessFilter) (int, error)
	DeleteBusiness(ctx context.Context, id string) error

	// Companion content
	CreateContent(ctx context.Context, c *model.BusinessContent) error
	HasContent(ctx context.Context, businessID string) (bool, error)

	// Source records
	GetSourceRecord(ctx context.Context, businessID, field string) (*model.SourceRecord, error)
	PutSourceRecord(ctx context.Context, r *model.SourceRecord) error
	InsertSourceRecords(ctx context.Context, recs []model.SourceRecord) error
	ListSourceRecords(ctx context.Context, businessID string) ([]model.SourceRecord, error)
	CountSourceRecords(ctx context.Context, businessID string) (int, error)

	// Import batches
	CreateImportBatch(ctx context.Context, b *model.ImportBatch) error
	UpdateImportBatch(ctx context.Context, b *model.ImportBatch) error
	GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error)
	ListImportBatches(ctx context.Context, filter BatchFilter) ([]model.ImportBatch, error)
	DeleteImportBatch(ctx context.Context, id string) (bool, error)
	DeleteImportBatchesByStatus(ctx context.Context, status model.BatchStatus) (int, error)

	// Validation results
	SaveValidationResults(ctx context.Context, v *model.ValidationResults) error
	ListValidationResults(ctx context.Context, batchID string, limit int) ([]model.ValidationResults, error)

	// Categories
	PutCategory(ctx context.Context, c *model.Category) error
	GetCategory(ctx context.Context, id string) (*model.Category, error)

	// Cache invalidation markers
	GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	PutCacheEntry(ctx context.Context, e *model.CacheEntry) error

	// Reviews and their analyses
	CreateReview(ctx context.Context, r *model.Review) error
	ListReviews(ctx context.Context, businessID string, offset, limit int) ([]model.Review, error)
	GetReviewTag(ctx context.Context, reviewID, businessID string) (*model.ReviewTag, error)
	PutReviewTag(ctx context.Context, t *model.ReviewTag) error
	ListReviewTags(ctx context.Context, businessID string) ([]model.ReviewTag, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
