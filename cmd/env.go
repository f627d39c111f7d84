package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/batch"
	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/metrics"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/review"
	"github.com/sells-group/bizdir/internal/store"
	"github.com/sells-group/bizdir/internal/validate"
	"github.com/sells-group/bizdir/internal/waterfall"
	"github.com/sells-group/bizdir/pkg/anthropic"
)

// appEnv bundles the components every command works with.
type appEnv struct {
	Store     store.Store
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Recorder  *provenance.Recorder
	Tracker   *batch.Tracker
	Importer  *importer.Importer
	Runner    *importer.Runner
	Validator *validate.Validator
	Reviews   *review.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  *store.DocStore
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "bizdir.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates the config for mode and wires the components.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	priorities := waterfall.DefaultConfig()
	if cfg.Waterfall.ConfigPath != "" {
		p, err := waterfall.LoadConfig(cfg.Waterfall.ConfigPath)
		if err != nil {
			return nil, err
		}
		priorities = p
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rec := provenance.NewRecorder(st, priorities)
	tr := batch.NewTracker(st).WithWindow(time.Duration(cfg.Batch.FixWindowMins) * time.Minute)
	im := importer.New(st, rec).
		WithConfidence(float64(cfg.Import.Confidence)).
		WithMetrics(m)

	return &appEnv{
		Store:     st,
		Registry:  reg,
		Metrics:   m,
		Recorder:  rec,
		Tracker:   tr,
		Importer:  im,
		Runner:    importer.NewRunner(st, im, tr),
		Validator: validate.New(st).WithMetrics(m),
		Reviews:   review.NewService(st, newAnalyzer(m), reviewOptions()).WithMetrics(m),
	}, nil
}

func newAnalyzer(m *metrics.Metrics) review.Analyzer {
	if !cfg.Review.UseLLM {
		return review.HeuristicAnalyzer{}
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return review.NewLLMAnalyzer(client, review.LLMConfig{
		Model:          cfg.Anthropic.Model,
		MaxTokens:      cfg.Anthropic.MaxTokens,
		Timeout:        time.Duration(cfg.Review.AnalysisTimeoutSecs) * time.Second,
		RequestsPerSec: cfg.Review.RequestsPerSec,
		Resilience:     cfg.Resilience.Settings(),
	}).WithMetrics(m)
}

func reviewOptions() review.Options {
	return review.Options{
		PageSize:      cfg.Review.PageSize,
		MaxPages:      cfg.Review.MaxPages,
		ThrottleEvery: cfg.Review.ThrottleEvery,
		ThrottleDelay: time.Duration(cfg.Review.ThrottleDelayMs) * time.Millisecond,
	}
}
