package model

import "time"

// Review is a customer review of a business.
type Review struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Author     string    `json:"author,omitempty"`
	Rating     float64   `json:"rating"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// QualityIndicators flags what a review says about the work itself.
// Defaults: all false.
type QualityIndicators struct {
	Professionalism bool `json:"professionalism"`
	Cleanliness     bool `json:"cleanliness"`
	Communication   bool `json:"communication"`
	Punctuality     bool `json:"punctuality"`
	ProblemSolved   bool `json:"problem_solved"`
}

// ServiceExcellence holds the six 0-10 sub-scores aggregated into business scores.
// Default for each score is 5 (neutral).
type ServiceExcellence struct {
	Speed          float64 `json:"speed"`
	Value          float64 `json:"value"`
	Quality        float64 `json:"quality"`
	Reliability    float64 `json:"reliability"`
	Expertise      float64 `json:"expertise"`
	CustomerImpact float64 `json:"customer_impact"`
}

// CustomerExperience describes the reviewer's situation. Defaults: empty / false.
type CustomerExperience struct {
	ServiceType  string `json:"service_type,omitempty"`
	Emergency    bool   `json:"emergency"`
	RepeatClient bool   `json:"repeat_client"`
}

// CompetitiveSignals records comparisons against other providers. Defaults: false.
type CompetitiveSignals struct {
	MentionsCompetitor bool `json:"mentions_competitor"`
	SwitchedFrom       bool `json:"switched_from"`
}

// PerformanceSignals captures concrete delivery claims. Defaults: false.
type PerformanceSignals struct {
	SameDay     bool `json:"same_day"`
	OnBudget    bool `json:"on_budget"`
	WarrantyMet bool `json:"warranty_met"`
}

// RecommendationSignals captures whether the reviewer would recommend or return.
// Defaults: false.
type RecommendationSignals struct {
	WouldRecommend bool `json:"would_recommend"`
	WouldReturn    bool `json:"would_return"`
}

// ReviewAnalysis is the structured scorecard produced for one review.
type ReviewAnalysis struct {
	Quality        QualityIndicators     `json:"quality"`
	Service        ServiceExcellence     `json:"service"`
	Experience     CustomerExperience    `json:"experience"`
	Competitive    CompetitiveSignals    `json:"competitive"`
	Performance    PerformanceSignals    `json:"performance"`
	Recommendation RecommendationSignals `json:"recommendation"`
	Sentiment      string                `json:"sentiment"`
	SentimentScore float64               `json:"sentiment_score"`
	Keywords       []string              `json:"keywords"`
	CustomerQuote  string                `json:"customer_quote,omitempty"`
	Confidence     float64               `json:"confidence"`
}

// DefaultReviewAnalysis returns a scorecard populated with the documented defaults.
func DefaultReviewAnalysis() ReviewAnalysis {
	return ReviewAnalysis{
		Service: ServiceExcellence{
			Speed: 5, Value: 5, Quality: 5, Reliability: 5, Expertise: 5, CustomerImpact: 5,
		},
		Sentiment:  SentimentNeutral,
		Keywords:   []string{},
		Confidence: 0.5,
	}
}

// ReviewTag is the persisted analysis for one (review, business) pair.
type ReviewTag struct {
	ID         string         `json:"id"`
	ReviewID   string         `json:"review_id"`
	BusinessID string         `json:"business_id"`
	Analysis   ReviewAnalysis `json:"analysis"`
	Analyzer   string         `json:"analyzer"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TieredKeywords slices the top keywords by display tier.
type TieredKeywords struct {
	Basic        []string `json:"basic"`
	Enhanced     []string `json:"enhanced"`
	Professional []string `json:"professional"`
	Premium      []string `json:"premium"`
}

// BusinessInsights is the business-level aggregate of all review analyses.
type BusinessInsights struct {
	Speed           float64        `json:"speed"`
	Value           float64        `json:"value"`
	Quality         float64        `json:"quality"`
	Reliability     float64        `json:"reliability"`
	Expertise       float64        `json:"expertise"`
	CustomerImpact  float64        `json:"customer_impact"`
	OverallScore    float64        `json:"overall_score"`
	TopKeywords     []string       `json:"top_keywords"`
	Quotes          []string       `json:"quotes"`
	Tiers           TieredKeywords `json:"tiers"`
	ReviewsAnalyzed int            `json:"reviews_analyzed"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
