package review

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/metrics"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/store"
)

// ErrBusinessNotFound is returned when the business to analyze does not exist.
var ErrBusinessNotFound = eris.New("review: business not found")

// Options bound how many reviews one analysis run reads and how it paces itself.
type Options struct {
	PageSize      int
	MaxPages      int
	ThrottleEvery int
	ThrottleDelay time.Duration
}

// DefaultOptions reads at most four pages of 50 and pauses one second after
// every 10 reviews.
func DefaultOptions() Options {
	return Options{PageSize: 50, MaxPages: 4, ThrottleEvery: 10, ThrottleDelay: time.Second}
}

// Request asks for one business's reviews to be analyzed.
type Request struct {
	BusinessID string `json:"business_id"`
	// BatchSize is the review page size; zero uses Options.PageSize.
	BatchSize int `json:"batch_size,omitempty"`
	// SkipExisting leaves reviews that already carry an analysis untouched.
	SkipExisting bool `json:"skip_existing"`
}

// Response reports the outcome of an analysis run.
type Response struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Insights *model.BusinessInsights `json:"insights,omitempty"`
	Analyzed int                     `json:"analyzed"`
	Skipped  int                     `json:"skipped"`
	Failed   int                     `json:"failed"`
}

// Service analyzes a business's reviews and writes the aggregate back onto
// the business.
type Service struct {
	store    store.Store
	analyzer Analyzer
	opts     Options
	metrics  *metrics.Metrics
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates a Service. Zero fields of opts take their defaults.
func NewService(st store.Store, analyzer Analyzer, opts Options) *Service {
	d := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = d.PageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = d.MaxPages
	}
	return &Service{
		store:    st,
		analyzer: analyzer,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "review")),
	}
}

// WithMetrics records analyses on m.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// AnalyzeBusiness analyzes up to MaxPages pages of the business's reviews,
// stores one tag per review and updates the business scores from every tag
// the business has. A failing review is logged and skipped.
func (s *Service) AnalyzeBusiness(ctx context.Context, req Request) (*Response, error) {
	biz, err := s.store.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return nil, eris.Wrapf(err, "review: get business %s", req.BusinessID)
	}
	if biz == nil {
		return nil, eris.Wrapf(ErrBusinessNotFound, "review: business %s", req.BusinessID)
	}
	log := s.log.With(zap.String("business_id", biz.ID))

	size := req.BatchSize
	if size <= 0 {
		size = s.opts.PageSize
	}

	resp := &Response{}
	seen := 0
	for page := 0; page < s.opts.MaxPages; page++ {
		reviews, err := s.store.ListReviews(ctx, biz.ID, page*size, size)
		if err != nil {
			return nil, eris.Wrapf(err, "review: list reviews page %d", page)
		}
		for _, r := range reviews {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "review: analysis interrupted")
			}
			seen++
			if s.opts.ThrottleEvery > 0 && seen > 1 && (seen-1)%s.opts.ThrottleEvery == 0 {
				if err := sleep(ctx, s.opts.ThrottleDelay); err != nil {
					return nil, eris.Wrap(err, "review: analysis interrupted")
				}
			}

			analyzed, err := s.analyzeOne(ctx, biz.ID, r, req.SkipExisting)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return nil, eris.Wrap(err, "review: analysis interrupted")
				}
				resp.Failed++
				log.Warn("review analysis failed", zap.String("review_id", r.ID), zap.Error(err))
			case analyzed:
				resp.Analyzed++
			default:
				resp.Skipped++
			}
		}
		if len(reviews) < size {
			break
		}
	}

	if seen == 0 {
		resp.Message = "no reviews found for business"
		return resp, nil
	}

	tags, err := s.store.ListReviewTags(ctx, biz.ID)
	if err != nil {
		return nil, eris.Wrap(err, "review: list tags")
	}
	analyses := make([]model.ReviewAnalysis, 0, len(tags))
	for _, t := range tags {
		analyses = append(analyses, t.Analysis)
	}
	ins := Aggregate(analyses, s.now())
	if ins == nil {
		resp.Message = fmt.Sprintf("no reviews could be analyzed (%d failed)", resp.Failed)
		return resp, nil
	}

	if err := s.apply(ctx, biz, ins); err != nil {
		return nil, err
	}

	resp.Success = true
	resp.Insights = ins
	resp.Message = fmt.Sprintf("analyzed %d reviews (%d skipped, %d failed)", resp.Analyzed, resp.Skipped, resp.Failed)
	log.Info("review analysis finished",
		zap.Int("analyzed", resp.Analyzed),
		zap.Int("skipped", resp.Skipped),
		zap.Int("failed", resp.Failed),
		zap.Float64("overall_score", ins.OverallScore),
	)
	return resp, nil
}

// analyzeOne returns false without error when the review was skipped.
func (s *Service) analyzeOne(ctx context.Context, businessID string, r model.Review, skipExisting bool) (bool, error) {
	if skipExisting {
		existing, err := s.store.GetReviewTag(ctx, r.ID, businessID)
		if err != nil {
			return false, err
		}
		if existing != nil {
			return false, nil
		}
	}

	scored, err := s.analyzer.Analyze(ctx, r)
	if err != nil {
		return false, err
	}
	tag := &model.ReviewTag{
		ReviewID:   r.ID,
		BusinessID: businessID,
		Analysis:   scored.Analysis,
		Analyzer:   scored.Analyzer,
		CreatedAt:  s.now(),
	}
	if err := s.store.PutReviewTag(ctx, tag); err != nil {
		return false, err
	}
	s.metrics.RecordReviewAnalysis(scored.Analyzer)
	return true, nil
}

func (s *Service) apply(ctx context.Context, biz *model.Business, ins *model.BusinessInsights) error {
	speed, value, quality, reliability, overall := ins.Speed, ins.Value, ins.Quality, ins.Reliability, ins.OverallScore
	biz.SpeedScore = &speed
	biz.ValueScore = &value
	biz.QualityScore = &quality
	biz.ReliabilityScore = &reliability
	biz.OverallScore = &overall
	biz.Insights = ins
	biz.UpdatedAt = s.now()
	return eris.Wrapf(s.store.UpdateBusiness(ctx, biz), "review: update business %s", biz.ID)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
