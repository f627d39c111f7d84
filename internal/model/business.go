package model

import "time"

// PlanTier is a business's subscription level.
type PlanTier string

const (
	PlanFree  PlanTier = "free"
	PlanPro   PlanTier = "pro"
	PlanPower PlanTier = "power"
)

// SyncStatus describes the state of the last external data sync.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// Coordinates is an optional geographic point for a business.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DataSourceMetadata links a business back to the import that created it.
type DataSourceMetadata struct {
	ImportBatchID string         `json:"import_batch_id,omitempty"`
	ImportSource  string         `json:"import_source,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// DataSource summarizes where a business's data came from.
type DataSource struct {
	Primary    string             `json:"primary"`
	LastSyncAt time.Time          `json:"last_sync_at"`
	SyncStatus SyncStatus         `json:"sync_status"`
	Metadata   DataSourceMetadata `json:"metadata"`
}

// Business is a directory listing.
type Business struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	URLPath          string            `json:"url_path"`
	Description      string            `json:"description,omitempty"`
	ShortDescription string            `json:"short_description,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Email            string            `json:"email,omitempty"`
	Website          string            `json:"website,omitempty"`
	Address          string            `json:"address,omitempty"`
	City             string            `json:"city,omitempty"`
	State            string            `json:"state,omitempty"`
	Zip              string            `json:"zip,omitempty"`
	Coordinates      *Coordinates      `json:"coordinates,omitempty"`
	CategoryID       string            `json:"category_id,omitempty"`
	Services         []string          `json:"services,omitempty"`
	Hours            map[string]string `json:"hours,omitempty"`
	Rating           float64           `json:"rating"`
	ReviewCount      int               `json:"review_count"`
	SocialLinks      map[string]string `json:"social_links,omitempty"`
	GMBPlaceID       string            `json:"gmb_place_id,omitempty"`
	GMBURL           string            `json:"gmb_url,omitempty"`

	PlanTier PlanTier `json:"plan_tier"`
	Claimed  bool     `json:"claimed"`
	Verified bool     `json:"verified"`
	Active   bool     `json:"active"`
	Featured bool     `json:"featured"`
	Priority int      `json:"priority"`

	DataSource DataSource `json:"data_source"`

	SpeedScore       *float64          `json:"speed_score,omitempty"`
	ValueScore       *float64          `json:"value_score,omitempty"`
	QualityScore     *float64          `json:"quality_score,omitempty"`
	ReliabilityScore *float64          `json:"reliability_score,omitempty"`
	OverallScore     *float64          `json:"overall_score,omitempty"`
	Insights         *BusinessInsights `json:"insights,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BusinessRecord is one incoming row of an import, before it becomes a Business.
type BusinessRecord struct {
	Name             string            `json:"name" validate:"required"`
	Slug             string            `json:"slug,omitempty"`
	URLPath          string            `json:"url_path,omitempty"`
	Description      string            `json:"description,omitempty"`
	ShortDescription string            `json:"short_description,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Email            string            `json:"email,omitempty"`
	Website          string            `json:"website,omitempty"`
	Address          string            `json:"address,omitempty"`
	City             string            `json:"city,omitempty"`
	State            string            `json:"state,omitempty"`
	Zip              string            `json:"zip,omitempty"`
	Coordinates      *Coordinates      `json:"coordinates,omitempty"`
	CategoryID       string            `json:"category_id,omitempty"`
	Services         []string          `json:"services,omitempty"`
	Hours            map[string]string `json:"hours,omitempty"`
	Rating           float64           `json:"rating,omitempty" validate:"gte=0,lte=5"`
	ReviewCount      int               `json:"review_count,omitempty" validate:"gte=0"`
	SocialLinks      map[string]string `json:"social_links,omitempty"`
	GMBPlaceID       string            `json:"gmb_place_id,omitempty"`
	GMBURL           string            `json:"gmb_url,omitempty"`
}

// BusinessContent is the companion content document created alongside every business.
type BusinessContent struct {
	ID         string            `json:"id"`
	BusinessID string            `json:"business_id"`
	Sections   map[string]string `json:"sections"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Category is a business category referenced by Business.CategoryID.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CacheEntry records when a named cache (e.g. the sitemap) was last invalidated.
type CacheEntry struct {
	Key           string    `json:"key"`
	InvalidatedAt time.Time `json:"invalidated_at"`
	Reason        string    `json:"reason,omitempty"`
}

// SitemapCacheKey names the cache entry invalidated when an import batch completes.
const SitemapCacheKey = "sitemap"

// SitemapBatchKey names the sitemap invalidation marker written for one batch.
// It survives later batches overwriting the shared SitemapCacheKey entry.
func SitemapBatchKey(batchID string) string {
	return SitemapCacheKey + ":" + batchID
}
