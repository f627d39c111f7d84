package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err, "duplicate registration")
}

func TestRecordImport(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordImport(OutcomeCreated)
	m.RecordImport(OutcomeCreated)
	m.RecordImport(OutcomeSkipped)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.importRecordsTotal.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importRecordsTotal.WithLabelValues(OutcomeSkipped)))
}

func TestRecordValidation(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordValidation("completed", 92)
	m.RecordValidation("failed", 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.validationRunsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.validationRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.validationScore))
}

func TestRecordReviewAnalysis(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordReviewAnalysis("heuristic")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reviewAnalysesTotal.WithLabelValues("heuristic")))
}

func TestRecordLLMUsage(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordLLMUsage("haiku", 400, 150, 0.00115)
	m.RecordLLMUsage("haiku", 100, 50, 0.00035)

	assert.Equal(t, float64(500), testutil.ToFloat64(m.llmTokensTotal.WithLabelValues("haiku", "input")))
	assert.Equal(t, float64(200), testutil.ToFloat64(m.llmTokensTotal.WithLabelValues("haiku", "output")))
	assert.InDelta(t, 0.0015, testutil.ToFloat64(m.llmCostUSDTotal.WithLabelValues("haiku")), 1e-9)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordImport(OutcomeFailed)
		m.RecordValidation("completed", 50)
		m.RecordReviewAnalysis("llm")
		m.RecordLLMUsage("haiku", 10, 5, 0.01)
	})
}
