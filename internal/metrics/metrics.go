// Package metrics exposes Prometheus counters for imports, validation runs,
// review analyses and model spend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Import outcomes.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the bizdir collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	importRecordsTotal  *prometheus.CounterVec
	validationRunsTotal *prometheus.CounterVec
	validationScore     prometheus.Histogram
	reviewAnalysesTotal *prometheus.CounterVec
	llmTokensTotal      *prometheus.CounterVec
	llmCostUSDTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		importRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_import_records_total",
				Help: "Business records processed by the importer",
			},
			[]string{"outcome"}, // created, skipped, failed
		),
		validationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_validation_runs_total",
				Help: "Import validation runs by final status",
			},
			[]string{"status"},
		),
		validationScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bizdir_validation_score",
				Help:    "Overall score of completed validation runs",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
		reviewAnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_review_analyses_total",
				Help: "Review analyses persisted, by analyzer",
			},
			[]string{"analyzer"},
		),
		llmTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_llm_tokens_total",
				Help: "Language model tokens consumed by review analysis",
			},
			[]string{"model", "direction"}, // input, output
		),
		llmCostUSDTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdir_llm_cost_usd_total",
				Help: "Estimated language model spend in USD",
			},
			[]string{"model"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.importRecordsTotal.Describe(ch)
	m.validationRunsTotal.Describe(ch)
	m.validationScore.Describe(ch)
	m.reviewAnalysesTotal.Describe(ch)
	m.llmTokensTotal.Describe(ch)
	m.llmCostUSDTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.importRecordsTotal.Collect(ch)
	m.validationRunsTotal.Collect(ch)
	m.validationScore.Collect(ch)
	m.reviewAnalysesTotal.Collect(ch)
	m.llmTokensTotal.Collect(ch)
	m.llmCostUSDTotal.Collect(ch)
}

// RecordImport counts one processed record.
func (m *Metrics) RecordImport(outcome string) {
	if m == nil {
		return
	}
	m.importRecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidation counts a finished validation run and observes its score
// when it completed.
func (m *Metrics) RecordValidation(status string, score int) {
	if m == nil {
		return
	}
	m.validationRunsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		m.validationScore.Observe(float64(score))
	}
}

// RecordReviewAnalysis counts one persisted review analysis.
func (m *Metrics) RecordReviewAnalysis(analyzer string) {
	if m == nil {
		return
	}
	m.reviewAnalysesTotal.WithLabelValues(analyzer).Inc()
}

// RecordLLMUsage adds the tokens and estimated cost of one model call.
func (m *Metrics) RecordLLMUsage(model string, input, output int64, usd float64) {
	if m == nil {
		return
	}
	m.llmTokensTotal.WithLabelValues(model, "input").Add(float64(input))
	m.llmTokensTotal.WithLabelValues(model, "output").Add(float64(output))
	m.llmCostUSDTotal.WithLabelValues(model).Add(usd)
}
