package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bizdir/internal/api"
	"github.com/sells-group/bizdir/internal/batch"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP API with scheduled batch repair and health alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg.Server.Port = resolvePort(servePort, cfg.Server.Port)
		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		handler := api.New(api.Services{
			Tracker:   env.Tracker,
			Runner:    env.Runner,
			Validator: env.Validator,
			Reviews:   env.Reviews,
			Sources:   env.Recorder,
			Metrics:   promhttp.HandlerFor(env.Registry, promhttp.HandlerOpts{}),
		}).Router(cfg.Server.AllowedOrigins)

		sched, err := scheduleRepairs(ctx, env.Tracker, cfg.Batch.FixPendingSchedule)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return startServer(ctx, handler, cfg.Server.Port)
		})
		if cfg.Monitoring.WebhookURL != "" {
			checker := newChecker(env.Store, cfg.Monitoring)
			g.Go(func() error {
				checker.Run(ctx)
				return nil
			})
		}
		if sched != nil {
			g.Go(func() error {
				sched.Start()
				<-ctx.Done()
				<-sched.Stop().Done()
				return nil
			})
		}
		return g.Wait()
	},
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

// scheduleRepairs registers a cron job running FixPending. An empty spec
// returns a nil scheduler.
func scheduleRepairs(ctx context.Context, tr *batch.Tracker, spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		fixes, err := tr.FixPending(ctx)
		if err != nil {
			zap.L().Error("scheduled fix-pending failed", zap.Error(err))
		}
		if len(fixes) > 0 {
			zap.L().Info("scheduled fix-pending repaired batches", zap.Int("count", len(fixes)))
		}
	})
	if err != nil {
		return nil, eris.Wrapf(err, "invalid batch.fix_pending_schedule %q", spec)
	}
	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
