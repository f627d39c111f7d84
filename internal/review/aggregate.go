package review

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/bizdir/internal/model"
)

const (
	topKeywords = 10
	maxQuotes   = 5
	// overallScale maps the summed 0-10 means of speed, value, quality and
	// reliability onto 0-100.
	overallScale = 2.5
)

// Aggregate rolls review analyses up into business insights. It returns nil
// when analyses is empty.
func Aggregate(analyses []model.ReviewAnalysis, now time.Time) *model.BusinessInsights {
	n := len(analyses)
	if n == 0 {
		return nil
	}

	var sum model.ServiceExcellence
	counts := map[string]int{}
	var quotes []string
	seenQuote := map[string]bool{}
	for _, a := range analyses {
		sum.Speed += a.Service.Speed
		sum.Value += a.Service.Value
		sum.Quality += a.Service.Quality
		sum.Reliability += a.Service.Reliability
		sum.Expertise += a.Service.Expertise
		sum.CustomerImpact += a.Service.CustomerImpact

		for _, k := range a.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				counts[k]++
			}
		}

		q := strings.TrimSpace(a.CustomerQuote)
		if len(quotes) < maxQuotes && len([]rune(q)) > minQuoteLen && !seenQuote[q] {
			seenQuote[q] = true
			quotes = append(quotes, q)
		}
	}

	f := float64(n)
	ins := &model.BusinessInsights{
		Speed:           sum.Speed / f,
		Value:           sum.Value / f,
		Quality:         sum.Quality / f,
		Reliability:     sum.Reliability / f,
		Expertise:       sum.Expertise / f,
		CustomerImpact:  sum.CustomerImpact / f,
		TopKeywords:     rankKeywords(counts, topKeywords),
		Quotes:          quotes,
		ReviewsAnalyzed: n,
		UpdatedAt:       now,
	}
	if ins.Quotes == nil {
		ins.Quotes = []string{}
	}
	ins.OverallScore = OverallScore(ins.Speed, ins.Value, ins.Quality, ins.Reliability)
	ins.Tiers = Tiers(ins.TopKeywords)
	return ins
}

// OverallScore is (speed+value+quality+reliability) × 2.5 rounded to one decimal.
func OverallScore(speed, value, quality, reliability float64) float64 {
	return math.Round((speed+value+quality+reliability)*overallScale*10) / 10
}

// rankKeywords returns up to limit keywords by descending count, breaking
// ties alphabetically.
func rankKeywords(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// Tiers slices keywords for display by plan tier: basic shows three,
// enhanced five, professional and premium all of them.
func Tiers(keywords []string) model.TieredKeywords {
	head := func(n int) []string {
		return append([]string{}, keywords[:min(n, len(keywords))]...)
	}
	return model.TieredKeywords{
		Basic:        head(3),
		Enhanced:     head(5),
		Professional: head(len(keywords)),
		Premium:      head(len(keywords)),
	}
}
