package model

import "time"

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusPending, BatchStatusCompleted, BatchStatusFailed:
		return true
	}
	return false
}

// BatchResults summarizes what an import run did.
type BatchResults struct {
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// Total is the number of records accounted for by the results.
func (r BatchResults) Total() int {
	return r.Created + r.Failed + r.Duplicates
}

// ImportBatch is the tracking record for one import run.
type ImportBatch struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	ImportedBy     string         `json:"imported_by"`
	Source         string         `json:"source"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
	BusinessCount  int            `json:"business_count"`
	Status         BatchStatus    `json:"status"`
	Results        *BatchResults  `json:"results,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	ImportedAt     time.Time      `json:"imported_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}
