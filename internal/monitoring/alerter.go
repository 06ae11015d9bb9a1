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

	"github.com/sells-group/loan-desk/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectionRate      AlertType = "rejection_rate"
	AlertAcceptedBacklog    AlertType = "accepted_backlog"
	AlertClassifierFallback AlertType = "classifier_fallback"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a PortfolioSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *PortfolioSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	minDecisions := a.cfg.MinDecisions
	if minDecisions <= 0 {
		minDecisions = 1
	}
	if a.cfg.RejectionRateThreshold > 0 && snap.Decided >= minDecisions &&
		snap.RejectionRate > a.cfg.RejectionRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRejectionRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Rejection rate %.1f%% exceeds threshold %.1f%% (%d rejected / %d decided)",
				snap.RejectionRate*100, a.cfg.RejectionRateThreshold*100,
				snap.Rejected, snap.Decided,
			),
			Details: map[string]any{
				"rejection_rate": snap.RejectionRate,
				"threshold":      a.cfg.RejectionRateThreshold,
				"rejected":       snap.Rejected,
				"decided":        snap.Decided,
			},
			Timestamp: now,
		})
	}

	if a.cfg.AcceptedBacklog > 0 && snap.AcceptedBacklog > a.cfg.AcceptedBacklog {
		alerts = append(alerts, Alert{
			Type:     AlertAcceptedBacklog,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d accepted offers awaiting disbursement (threshold %d)",
				snap.AcceptedBacklog, a.cfg.AcceptedBacklog,
			),
			Details: map[string]any{
				"accepted_backlog": snap.AcceptedBacklog,
				"threshold":        a.cfg.AcceptedBacklog,
			},
			Timestamp: now,
		})
	}

	if snap.ClassifierKind == "fallback" {
		alerts = append(alerts, Alert{
			Type:      AlertClassifierFallback,
			Severity:  "low",
			Message:   "Eligibility decisions are using the credit score rule; the trained model is not loaded",
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
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

// sendWebhook posts a single alert to the webhook URL.
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
