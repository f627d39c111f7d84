// Package review scores customer reviews and rolls the scores up into
// business-level insights.
package review

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/bizdir/internal/model"
)

// Analyzer names stored on review tags.
const (
	AnalyzerHeuristic = "heuristic"
	AnalyzerLLM       = "llm"
)

// Scored is an analysis together with the analyzer that produced it.
type Scored struct {
	Analysis model.ReviewAnalysis
	Analyzer string
}

// Analyzer scores a single review.
type Analyzer interface {
	Analyze(ctx context.Context, r model.Review) (Scored, error)
}

type dimension struct {
	good []string
	bad  []string
}

// Keyword rules per service sub-score. Each good hit adds 2 points and each
// bad hit removes 3 from a base derived from the star rating.
var dimensions = map[string]dimension{
	"speed": {
		good: []string{"fast", "quick", "quickly", "prompt", "same day", "on time", "right away"},
		bad:  []string{"slow", "late", "delay", "delayed", "waited", "took forever"},
	},
	"value": {
		good: []string{"affordable", "fair price", "reasonable", "worth", "good price", "great price"},
		bad:  []string{"overpriced", "expensive", "rip off", "overcharged", "hidden fees"},
	},
	"quality": {
		good: []string{"excellent", "quality", "perfect", "thorough", "great job", "great work"},
		bad:  []string{"sloppy", "shoddy", "poor", "broke again", "mess"},
	},
	"reliability": {
		good: []string{"reliable", "dependable", "showed up", "on time", "trustworthy", "honest"},
		bad:  []string{"no show", "never showed", "cancelled", "unreliable", "ghosted"},
	},
	"expertise": {
		good: []string{"knowledgeable", "expert", "experienced", "professional", "skilled"},
		bad:  []string{"inexperienced", "clueless", "unprofessional", "amateur"},
	},
	"customer_impact": {
		good: []string{"recommend", "lifesaver", "saved", "peace of mind", "grateful", "amazing"},
		bad:  []string{"never again", "worst", "ruined", "terrible", "awful", "nightmare"},
	},
}

var (
	professionalismWords = []string{"professional", "courteous", "polite", "respectful"}
	cleanlinessWords     = []string{"clean", "tidy", "cleaned up", "spotless"}
	communicationWords   = []string{"communication", "communicated", "explained", "responsive", "kept us informed"}
	punctualityWords     = []string{"on time", "punctual", "early"}
	problemSolvedWords   = []string{"fixed", "solved", "resolved", "repaired", "works great"}

	emergencyWords  = []string{"emergency", "urgent", "middle of the night", "after hours", "weekend"}
	repeatWords     = []string{"again", "every time", "for years", "always use", "regular"}
	competitorWords = []string{"other company", "another company", "competitor", "other companies"}
	switchedWords   = []string{"switched", "used to use", "instead of"}

	sameDayWords   = []string{"same day", "same-day", "within hours"}
	onBudgetWords  = []string{"on budget", "as quoted", "matched the quote", "no surprises"}
	warrantyWords  = []string{"warranty", "guarantee", "guaranteed"}
	recommendWords = []string{"recommend", "highly recommend"}
	returnWords    = []string{"use them again", "call them again", "will be back", "hire them again", "use again"}
)

// dimensionOrder fixes keyword output order.
var dimensionOrder = []string{"speed", "value", "quality", "reliability", "expertise", "customer_impact"}

// HeuristicAnalyzer scores reviews with fixed keyword rules. It is
// deterministic and never fails.
type HeuristicAnalyzer struct{}

// Analyze scores r.
func (HeuristicAnalyzer) Analyze(_ context.Context, r model.Review) (Scored, error) {
	return Scored{Analysis: Heuristic(r), Analyzer: AnalyzerHeuristic}, nil
}

// Heuristic returns the keyword-rule scorecard for r.
func Heuristic(r model.Review) model.ReviewAnalysis {
	a := model.DefaultReviewAnalysis()
	text := normalizeText(r.Text)

	base := 5.0
	if r.Rating > 0 {
		base = math.Min(r.Rating, 5) * 2
	}

	var good, bad int
	seen := map[string]bool{}
	scores := make(map[string]float64, len(dimensions))
	for _, name := range dimensionOrder {
		d := dimensions[name]
		s := base
		for _, w := range d.good {
			if contains(text, w) {
				s += 2
				good++
				if !seen[w] {
					seen[w] = true
					a.Keywords = append(a.Keywords, w)
				}
			}
		}
		for _, w := range d.bad {
			if contains(text, w) {
				s -= 3
				bad++
				if !seen[w] {
					seen[w] = true
					a.Keywords = append(a.Keywords, w)
				}
			}
		}
		scores[name] = clamp(s, 0, 10)
	}
	a.Service = model.ServiceExcellence{
		Speed:          scores["speed"],
		Value:          scores["value"],
		Quality:        scores["quality"],
		Reliability:    scores["reliability"],
		Expertise:      scores["expertise"],
		CustomerImpact: scores["customer_impact"],
	}

	a.Quality = model.QualityIndicators{
		Professionalism: containsAny(text, professionalismWords),
		Cleanliness:     containsAny(text, cleanlinessWords),
		Communication:   containsAny(text, communicationWords),
		Punctuality:     containsAny(text, punctualityWords),
		ProblemSolved:   containsAny(text, problemSolvedWords),
	}
	a.Experience = model.CustomerExperience{
		Emergency:    containsAny(text, emergencyWords),
		RepeatClient: containsAny(text, repeatWords),
	}
	a.Competitive = model.CompetitiveSignals{
		MentionsCompetitor: containsAny(text, competitorWords),
		SwitchedFrom:       containsAny(text, switchedWords),
	}
	a.Performance = model.PerformanceSignals{
		SameDay:     containsAny(text, sameDayWords),
		OnBudget:    containsAny(text, onBudgetWords),
		WarrantyMet: containsAny(text, warrantyWords),
	}
	a.Recommendation = model.RecommendationSignals{
		WouldRecommend: containsAny(text, recommendWords),
		WouldReturn:    containsAny(text, returnWords),
	}

	a.SentimentScore = clamp((base-5)/5+0.2*float64(good-bad), -1, 1)
	switch {
	case a.SentimentScore > 0.2:
		a.Sentiment = model.SentimentPositive
	case a.SentimentScore < -0.2:
		a.Sentiment = model.SentimentNegative
	}
	a.CustomerQuote = quote(r.Text)
	a.Confidence = math.Min(0.5+0.05*float64(good+bad), 0.9)
	return a
}

// normalizeText lowercases s and reduces it to space-separated words, padded
// on both sides so phrases can be matched on word boundaries.
func normalizeText(s string) string {
	f := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	return " " + strings.Join(f, " ") + " "
}

func contains(text, phrase string) bool {
	return strings.Contains(text, " "+phrase+" ")
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if contains(text, p) {
			return true
		}
	}
	return false
}

const (
	minQuoteLen = 30
	maxQuoteLen = 200
)

// quote picks the first sentence long enough to stand on its own, falling
// back to the whole review.
func quote(text string) string {
	text = strings.TrimSpace(text)
	for _, s := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
		s = strings.TrimSpace(s)
		if len([]rune(s)) > minQuoteLen {
			return truncate(s)
		}
	}
	if len([]rune(text)) > minQuoteLen {
		return truncate(text)
	}
	return ""
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxQuoteLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxQuoteLen])) + "…"
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
