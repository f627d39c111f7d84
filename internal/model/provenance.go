package model

import "time"

// SourceContribution records a single value supplied for a field by one data source.
type SourceContribution struct {
	Source     string         `json:"source"`
	Value      any            `json:"value"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SourceRecord tracks the full contribution history for one business field
// plus the value currently shown on the business.
type SourceRecord struct {
	ID               string               `json:"id"`
	BusinessID       string               `json:"business_id"`
	Field            string               `json:"field"`
	Contributions    []SourceContribution `json:"contributions"`
	CurrentValue     any                  `json:"current_value"`
	CurrentSource    string               `json:"current_source"`
	CurrentUpdatedAt time.Time            `json:"current_updated_at"`
	Locked           bool                 `json:"locked"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// LatestFrom returns the most recent contribution from source, or nil.
func (r *SourceRecord) LatestFrom(source string) *SourceContribution {
	var latest *SourceContribution
	for i := range r.Contributions {
		c := &r.Contributions[i]
		if c.Source != source {
			continue
		}
		if latest == nil || !c.UpdatedAt.Before(latest.UpdatedAt) {
			latest = c
		}
	}
	return latest
}
