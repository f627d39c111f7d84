package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBatchFailureRate AlertType = "batch_failure_rate"
	AlertStalePending     AlertType = "stale_pending_batches"
	AlertValidationScore  AlertType = "low_validation_score"
)

// minFinished is how many finished batches the failure rate needs before it
// can alert.
const minFinished = 5

// Alert is one threshold breach.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against configured thresholds and posts alerts
// to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an alerter.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts snap triggers.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	finished := snap.BatchesCompleted + snap.BatchesFailed
	if finished >= minFinished && snap.BatchFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBatchFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Import batch failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.BatchFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.BatchesFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.BatchFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.BatchesFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.StalePending > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStalePending,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d import batch(es) stuck in pending; run fix-pending",
				snap.StalePending,
			),
			Details: map[string]any{
				"stale_pending": snap.StalePending,
				"pending":       snap.BatchesPending,
			},
			Timestamp: now,
		})
	}

	scored := snap.ValidationsRun - snap.ValidationsFailed
	if a.cfg.MinValidationScore > 0 && scored > 0 && snap.AvgValidationScore < a.cfg.MinValidationScore {
		alerts = append(alerts, Alert{
			Type:     AlertValidationScore,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average validation score %.1f is below %.1f across %d run(s) in last %dh",
				snap.AvgValidationScore, a.cfg.MinValidationScore, scored, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_score": snap.AvgValidationScore,
				"min_score": a.cfg.MinValidationScore,
				"runs":      scored,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts alerts to the webhook and returns how many were delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
