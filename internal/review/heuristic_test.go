package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/model"
)

func TestHeuristic_Positive(t *testing.T) {
	a := Heuristic(model.Review{
		Rating: 5,
		Text:   "Fast and professional service, highly recommend! They fixed the leak the same day.",
	})

	assert.Equal(t, 10.0, a.Service.Speed)
	assert.Equal(t, 10.0, a.Service.Expertise)
	assert.Equal(t, 10.0, a.Service.CustomerImpact)
	assert.Equal(t, 10.0, a.Service.Value)
	assert.Equal(t, []string{"fast", "same day", "professional", "recommend"}, a.Keywords)
	assert.True(t, a.Quality.Professionalism)
	assert.True(t, a.Quality.ProblemSolved)
	assert.True(t, a.Performance.SameDay)
	assert.True(t, a.Recommendation.WouldRecommend)
	assert.Equal(t, model.SentimentPositive, a.Sentiment)
	assert.Equal(t, 1.0, a.SentimentScore)
	assert.InDelta(t, 0.7, a.Confidence, 1e-9)
	assert.Equal(t, "Fast and professional service, highly recommend", a.CustomerQuote)
}

func TestHeuristic_Negative(t *testing.T) {
	a := Heuristic(model.Review{Rating: 1, Text: "Terrible. They were late and overpriced, never again."})

	assert.Equal(t, 0.0, a.Service.Speed)
	assert.Equal(t, 0.0, a.Service.Value)
	assert.Equal(t, 0.0, a.Service.CustomerImpact)
	assert.Equal(t, 2.0, a.Service.Quality)
	assert.Equal(t, []string{"late", "overpriced", "never again", "terrible"}, a.Keywords)
	assert.Equal(t, model.SentimentNegative, a.Sentiment)
	assert.Equal(t, -1.0, a.SentimentScore)
	assert.Equal(t, "They were late and overpriced, never again", a.CustomerQuote)
}

func TestHeuristic_NeutralDefaults(t *testing.T) {
	a := Heuristic(model.Review{Text: "Came by."})

	assert.Equal(t, model.DefaultReviewAnalysis().Service, a.Service)
	assert.Equal(t, model.SentimentNeutral, a.Sentiment)
	assert.NotNil(t, a.Keywords)
	assert.Empty(t, a.Keywords)
	assert.Empty(t, a.CustomerQuote)
	assert.Equal(t, 0.5, a.Confidence)
}

func TestHeuristic_MatchesWholeWords(t *testing.T) {
	a := Heuristic(model.Review{Rating: 4, Text: "They brought chocolate for the kids"})
	assert.Equal(t, 8.0, a.Service.Speed)
	assert.NotContains(t, a.Keywords, "late")
}

func TestHeuristicAnalyzer(t *testing.T) {
	got, err := HeuristicAnalyzer{}.Analyze(context.Background(), model.Review{Rating: 3, Text: "ok"})
	require.NoError(t, err)
	assert.Equal(t, AnalyzerHeuristic, got.Analyzer)
	assert.Equal(t, 6.0, got.Analysis.Service.Speed)
}

func TestQuote_Truncates(t *testing.T) {
	long := ""
	for range 30 {
		long += "very long words "
	}
	q := quote(long)
	assert.Len(t, []rune(q), maxQuoteLen+1)
	assert.Equal(t, "", quote("short one. also short!"))
}
