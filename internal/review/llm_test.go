package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/cost"
	"github.com/sells-group/bizdir/internal/metrics"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/resilience"
	"github.com/sells-group/bizdir/pkg/anthropic"
	anthropicmocks "github.com/sells-group/bizdir/pkg/anthropic/mocks"
)

var sampleReview = model.Review{ID: "r1", Rating: 5, Text: "Fast and friendly, fixed our water heater the same day."}

func testLLMConfig() LLMConfig {
	return LLMConfig{
		Model:      "test-model",
		MaxTokens:  512,
		Timeout:    time.Second,
		Resilience: resilience.Settings{MaxAttempts: 1, FailureThreshold: 5, ResetTimeoutSecs: 30},
	}
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

func TestLLMAnalyzer_ParsesModelReply(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "test-model" && req.MaxTokens == 512 &&
			req.Temperature != nil && *req.Temperature == 0 &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user"
	})).Return(textResponse("```json\n"+`{
		"service": {"speed": 9, "value": 7, "quality": 8, "reliability": 12, "expertise": 6, "customer_impact": 8},
		"sentiment": "positive",
		"sentiment_score": 0.9,
		"keywords": [" Same Day ", "friendly"],
		"customer_quote": "Fast and friendly, fixed our water heater the same day",
		"confidence": 0.85
	}`+"\n```"), nil).Once()

	got, err := NewLLMAnalyzer(client, testLLMConfig()).Analyze(context.Background(), sampleReview)
	require.NoError(t, err)
	assert.Equal(t, AnalyzerLLM, got.Analyzer)

	a := got.Analysis
	assert.Equal(t, 9.0, a.Service.Speed)
	assert.Equal(t, 10.0, a.Service.Reliability)
	assert.Equal(t, []string{"same day", "friendly"}, a.Keywords)
	assert.Equal(t, model.SentimentPositive, a.Sentiment)
	assert.Equal(t, 0.85, a.Confidence)
	assert.False(t, a.Competitive.MentionsCompetitor)
}

func TestLLMAnalyzer_FallsBackOnError(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("anthropic: create message: 401 unauthorized")).Once()

	got, err := NewLLMAnalyzer(client, testLLMConfig()).Analyze(context.Background(), sampleReview)
	require.NoError(t, err)
	assert.Equal(t, AnalyzerHeuristic, got.Analyzer)
	assert.Equal(t, Heuristic(sampleReview), got.Analysis)
}

func TestLLMAnalyzer_FallsBackOnUnparseableReply(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I'm not able to score this review."), nil).Once()

	got, err := NewLLMAnalyzer(client, testLLMConfig()).Analyze(context.Background(), sampleReview)
	require.NoError(t, err)
	assert.Equal(t, AnalyzerHeuristic, got.Analyzer)
}

func TestLLMAnalyzer_FallsBackOnTimeout(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil).Once()

	cfg := testLLMConfig()
	cfg.Timeout = 20 * time.Millisecond
	start := time.Now()
	got, err := NewLLMAnalyzer(client, cfg).Analyze(context.Background(), sampleReview)
	require.NoError(t, err)
	assert.Equal(t, AnalyzerHeuristic, got.Analyzer)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLLMAnalyzer_CallerCancellationIsAnError(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testLLMConfig()
	cfg.RequestsPerSec = 1
	_, err := NewLLMAnalyzer(client, cfg).Analyze(ctx, sampleReview)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAnalysis_DefaultsAndBounds(t *testing.T) {
	a, err := parseAnalysis(`Here you go: {"service": {"speed": -4}, "sentiment": "ecstatic", "confidence": 3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Service.Speed)
	assert.Equal(t, 5.0, a.Service.Value)
	assert.Equal(t, model.SentimentNeutral, a.Sentiment)
	assert.Equal(t, 1.0, a.Confidence)
	assert.NotNil(t, a.Keywords)

	_, err = parseAnalysis("no json here")
	assert.Error(t, err)
}

func TestLLMAnalyzer_RecordsUsage(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	resp := textResponse(`{"sentiment": "positive", "confidence": 0.8}`)
	resp.Usage = anthropic.TokenUsage{InputTokens: 400, OutputTokens: 150}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(resp, nil).Once()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	a := NewLLMAnalyzer(client, testLLMConfig()).
		WithMetrics(m).
		WithPricing(cost.Rates{Anthropic: map[string]cost.ModelRate{"test-model": {Input: 1, Output: 5}}})
	_, err = a.Analyze(context.Background(), sampleReview)
	require.NoError(t, err)

	assert.Equal(t, 550.0, gatheredSum(t, reg, "bizdir_llm_tokens_total"))
	assert.InDelta(t, 0.00115, gatheredSum(t, reg, "bizdir_llm_cost_usd_total"), 1e-9)
}

func gatheredSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
