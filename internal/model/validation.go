package model

import "time"

// ValidationStatus is the state of a validation run.
type ValidationStatus string

const (
	ValidationRunning   ValidationStatus = "running"
	ValidationCompleted ValidationStatus = "completed"
	ValidationFailed    ValidationStatus = "failed"
)

// Check is one named pass/fail assertion inside a validation category.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// CategoryResult is the outcome of one validation category.
type CategoryResult struct {
	Passed     bool               `json:"passed"`
	Score      float64            `json:"score"`
	Checks     []Check            `json:"checks"`
	DurationMs int64              `json:"duration_ms"`
	Skipped    bool               `json:"skipped,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// AddCheck appends a check to the category.
func (c *CategoryResult) AddCheck(name string, passed bool, message string) {
	c.Checks = append(c.Checks, Check{Name: name, Passed: passed, Message: message})
}

// SetMetric records a numeric observation.
func (c *CategoryResult) SetMetric(key string, v float64) {
	if c.Metrics == nil {
		c.Metrics = make(map[string]float64)
	}
	c.Metrics[key] = v
}

// SampleBusiness is a business picked for manual spot-checking.
type SampleBusiness struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	URLPath string `json:"url_path"`
}

// ValidationResults is the persisted outcome of validating one import batch.
type ValidationResults struct {
	ID                string           `json:"id"`
	BatchID           string           `json:"batch_id"`
	RunFullValidation bool             `json:"run_full_validation"`
	Status            ValidationStatus `json:"status"`

	DatabaseIntegrity  CategoryResult `json:"database_integrity"`
	DataQuality        CategoryResult `json:"data_quality"`
	SEOCompliance      CategoryResult `json:"seo_compliance"`
	SitemapIntegration CategoryResult `json:"sitemap_integration"`
	FunctionalSystems  CategoryResult `json:"functional_systems"`
	Performance        CategoryResult `json:"performance"`

	OverallScore     int              `json:"overall_score"`
	SampleBusinesses []SampleBusiness `json:"sample_businesses"`
	Recommendations  []string         `json:"recommendations"`
	Errors           []string         `json:"errors,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Categories returns pointers to the six category results in a fixed order.
func (v *ValidationResults) Categories() []*CategoryResult {
	return []*CategoryResult{
		&v.DatabaseIntegrity,
		&v.DataQuality,
		&v.SEOCompliance,
		&v.SitemapIntegration,
		&v.FunctionalSystems,
		&v.Performance,
	}
}
