package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/config"
)

// Checker runs collect, evaluate and send on an interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

// Report is the outcome of one check.
type Report struct {
	Snapshot *Snapshot `json:"snapshot"`
	Alerts   []Alert   `json:"alerts"`
	Sent     int       `json:"sent"`
}

// Check collects a snapshot and evaluates it. Alerts are posted only when
// send is set.
func (c *Checker) Check(ctx context.Context, send bool) (*Report, error) {
	snap, err := c.collector.Collect(ctx, c.lookback())
	if err != nil {
		return nil, err
	}
	rep := &Report{Snapshot: snap, Alerts: c.alerter.Evaluate(snap)}
	if send {
		rep.Sent = c.alerter.SendAlerts(ctx, rep.Alerts)
	}
	return rep, nil
}

// Run checks every CheckIntervalSecs until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.lookback()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			rep, err := c.Check(ctx, true)
			if err != nil {
				log.Error("monitoring: failed to collect snapshot", zap.Error(err))
				continue
			}
			if len(rep.Alerts) == 0 {
				log.Debug("monitoring: no alerts triggered")
				continue
			}
			log.Info("monitoring: alert check complete",
				zap.Int("alerts_triggered", len(rep.Alerts)),
				zap.Int("alerts_sent", rep.Sent),
			)
		}
	}
}

func (c *Checker) lookback() int {
	if c.cfg.LookbackWindowHours <= 0 {
		return 24
	}
	return c.cfg.LookbackWindowHours
}
