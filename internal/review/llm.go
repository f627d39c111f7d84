package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bizdir/internal/cost"
	"github.com/sells-group/bizdir/internal/metrics"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/resilience"
	"github.com/sells-group/bizdir/pkg/anthropic"
)

// DefaultAnalysisTimeout bounds one model call.
const DefaultAnalysisTimeout = 10 * time.Second

const systemPrompt = `You analyze customer reviews of local service businesses.
Reply with a single JSON object and nothing else, using this shape:
{
  "quality": {"professionalism": bool, "cleanliness": bool, "communication": bool, "punctuality": bool, "problem_solved": bool},
  "service": {"speed": 0-10, "value": 0-10, "quality": 0-10, "reliability": 0-10, "expertise": 0-10, "customer_impact": 0-10},
  "experience": {"service_type": string, "emergency": bool, "repeat_client": bool},
  "competitive": {"mentions_competitor": bool, "switched_from": bool},
  "performance": {"same_day": bool, "on_budget": bool, "warranty_met": bool},
  "recommendation": {"would_recommend": bool, "would_return": bool},
  "sentiment": "positive" | "neutral" | "negative",
  "sentiment_score": -1 to 1,
  "keywords": [up to 8 short lowercase phrases from the review],
  "customer_quote": the most quotable sentence of the review, or "",
  "confidence": 0 to 1
}
Use 5 for any service score the review says nothing about.`

// LLMConfig configures an LLMAnalyzer.
type LLMConfig struct {
	Model          string
	MaxTokens      int64
	Timeout        time.Duration
	RequestsPerSec float64
	Resilience     resilience.Settings
}

// LLMAnalyzer scores reviews with a language model. Any failure, including
// a timeout, falls back to the heuristic scorecard.
type LLMAnalyzer struct {
	client   anthropic.Client
	cfg      LLMConfig
	guard    *resilience.Guard
	limiter  *rate.Limiter
	fallback Analyzer
	pricing  *cost.Calculator
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewLLMAnalyzer creates an LLMAnalyzer.
func NewLLMAnalyzer(client anthropic.Client, cfg LLMConfig) *LLMAnalyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAnalysisTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &LLMAnalyzer{
		client:   client,
		cfg:      cfg,
		guard:    resilience.NewGuard("anthropic", cfg.Resilience),
		limiter:  rate.NewLimiter(limit, 1),
		fallback: HeuristicAnalyzer{},
		pricing:  cost.NewCalculator(cost.DefaultRates()),
		log:      zap.L().With(zap.String("component", "review_llm")),
	}
}

// WithMetrics records token usage and spend on m.
func (a *LLMAnalyzer) WithMetrics(m *metrics.Metrics) *LLMAnalyzer {
	a.metrics = m
	return a
}

// WithPricing overrides the default model rates.
func (a *LLMAnalyzer) WithPricing(rates cost.Rates) *LLMAnalyzer {
	a.pricing = cost.NewCalculator(rates)
	return a
}

// Analyze scores r with the model, or with the heuristic when the model
// cannot be reached or answers with something unusable. Cancellation of ctx
// itself is returned as an error.
func (a *LLMAnalyzer) Analyze(ctx context.Context, r model.Review) (Scored, error) {
	analysis, err := a.analyze(ctx, r)
	if err == nil {
		return Scored{Analysis: analysis, Analyzer: AnalyzerLLM}, nil
	}
	if ctx.Err() != nil {
		return Scored{}, eris.Wrap(ctx.Err(), "review: analysis cancelled")
	}
	a.log.Warn("model analysis failed, using heuristic",
		zap.String("review_id", r.ID),
		zap.Stringer("circuit", a.guard.State()),
		zap.Error(err),
	)
	return a.fallback.Analyze(ctx, r)
}

func (a *LLMAnalyzer) analyze(ctx context.Context, r model.Review) (model.ReviewAnalysis, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return model.ReviewAnalysis{}, eris.Wrap(err, "review: rate limit")
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      systemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Star rating: %.1f of 5\n\nReview:\n%s", r.Rating, r.Text),
		}},
	}
	resp, err := resilience.Call(ctx, a.guard, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return model.ReviewAnalysis{}, err
	}
	resp.Usage.Log(a.cfg.Model, "review_analysis")
	a.metrics.RecordLLMUsage(a.cfg.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens,
		a.pricing.Claude(a.cfg.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens))
	return parseAnalysis(resp.Text())
}

// parseAnalysis decodes a model reply over the default scorecard, so fields
// the model leaves out keep their defaults. Scores are clamped to range.
func parseAnalysis(text string) (model.ReviewAnalysis, error) {
	a := model.DefaultReviewAnalysis()
	if err := json.Unmarshal([]byte(cleanJSON(text)), &a); err != nil {
		return model.ReviewAnalysis{}, eris.Wrap(err, "review: parse model reply")
	}

	s := &a.Service
	for _, v := range []*float64{&s.Speed, &s.Value, &s.Quality, &s.Reliability, &s.Expertise, &s.CustomerImpact} {
		*v = clamp(*v, 0, 10)
	}
	a.SentimentScore = clamp(a.SentimentScore, -1, 1)
	a.Confidence = clamp(a.Confidence, 0, 1)
	switch a.Sentiment {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
	default:
		a.Sentiment = model.SentimentNeutral
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	for i, k := range a.Keywords {
		a.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return a, nil
}

// cleanJSON strips markdown fences and any prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
