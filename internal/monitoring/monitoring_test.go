package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/config"
	"github.com/sells-group/loan-desk/internal/model"
)

type mockLoader struct {
	doc   *model.Document
	err   error
	calls atomic.Int32
}

func (m *mockLoader) Load(context.Context) (*model.Document, error) {
	m.calls.Add(1)
	return m.doc, m.err
}

func portfolio() *model.Document {
	doc := model.NewDocument()
	doc.LoanRequests = []model.LoanRequest{
		{RequestID: 1, Status: model.StatusRequested},
		{RequestID: 2, Status: model.StatusRejected},
		{RequestID: 3, Status: model.StatusRejected},
		{RequestID: 4, Status: model.StatusOfferAccepted},
		{RequestID: 5, Status: model.StatusDisbursed},
	}
	doc.LoanQuotes = []model.LoanQuote{{QuoteID: 1, RequestID: 4}, {QuoteID: 2, RequestID: 5}}
	doc.LoanAccounts = []model.LoanAccount{
		{AccountID: 1, OriginalRequestID: 5, PrincipalBalance: 100000, Status: model.AccountStatusActive},
	}
	return doc
}

func TestSummarize(t *testing.T) {
	snap := Summarize(portfolio())

	assert.Equal(t, 5, snap.Requests)
	assert.Equal(t, 2, snap.Quotes)
	assert.Equal(t, 1, snap.Accounts)
	assert.Equal(t, 4, snap.Decided)
	assert.Equal(t, 2, snap.Rejected)
	assert.InDelta(t, 0.5, snap.RejectionRate, 1e-9)
	assert.Equal(t, 1, snap.AcceptedBacklog)
	assert.Equal(t, int64(100000), snap.OutstandingPrincipal)
	assert.Equal(t, 1, snap.ByStatus[model.StatusRequested])
}

func TestSummarize_Empty(t *testing.T) {
	snap := Summarize(model.NewDocument())
	assert.Zero(t, snap.Decided)
	assert.Zero(t, snap.RejectionRate)
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(&mockLoader{doc: portfolio()}, "trained")
	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trained", snap.ClassifierKind)

	c = NewCollector(&mockLoader{err: errors.New("disk gone")}, "trained")
	_, err = c.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: load document")
}

func TestCollector_LoaderFunc(t *testing.T) {
	calls := 0
	load := LoaderFunc(func(context.Context) (*model.Document, error) {
		calls++
		return portfolio(), nil
	})
	snap, err := NewCollector(load, "fallback").Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "fallback", snap.ClassifierKind)
}

func TestMetrics_Transitions(t *testing.T) {
	m := NewMetrics()
	m.ObserveTransition("accept_offer", nil)
	m.ObserveTransition("accept_offer", apperr.InvalidState("accept offer", "nope"))
	m.ObserveTransition("accept_offer", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("accept_offer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("accept_offer", "invalid_state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("accept_offer", "internal")))
}

func TestMetrics_Portfolio(t *testing.T) {
	m := NewMetrics()
	m.SetPortfolio(Summarize(portfolio()))
	m.SetClassifierFallback(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("REJECTED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requests.WithLabelValues("ELIGIBLE")))
	assert.Equal(t, 100000.0, testutil.ToFloat64(m.outstanding))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallback))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTransition("submit", nil)
	m.ObserveDecision("fallback", "approve")
	m.ObserveHTTP("/health", "GET", "200", 0.01)
	m.SetPortfolio(&PortfolioSnapshot{})
	m.SetClassifierFallback(true)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision("fallback", "approve")
	m.ObserveHTTP("/api/login", "POST", "200", 0.002)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `loandesk_eligibility_decisions_total{backend="fallback",label="approve"} 1`)
	assert.Contains(t, body, "loandesk_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		RejectionRateThreshold: 0.8,
		MinDecisions:           2,
		AcceptedBacklog:        5,
	})

	snap := Summarize(portfolio())
	snap.ClassifierKind = "trained"
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_RejectionRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		RejectionRateThreshold: 0.4,
		MinDecisions:           4,
	})

	snap := Summarize(portfolio())
	snap.ClassifierKind = "trained"

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRejectionRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "50.0%")

	a.cfg.MinDecisions = 10
	assert.Empty(t, a.Evaluate(snap), "too few decisions to judge")
}

func TestAlerter_Evaluate_BacklogAndFallback(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{AcceptedBacklog: 0})
	snap := &PortfolioSnapshot{AcceptedBacklog: 3, ClassifierKind: "fallback"}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertClassifierFallback, alerts[0].Type)

	a.cfg.AcceptedBacklog = 2
	alerts = a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertAcceptedBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "3 accepted offers")
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		if err := json.NewDecoder(r.Body).Decode(&alert); err != nil || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.HasPrefix(string(alert.Type), "classifier") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRejectionRate, Severity: "medium"},
		{Type: AlertClassifierFallback, Severity: "low"},
	})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertRejectionRate}}))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	loader := &mockLoader{doc: portfolio()}
	metrics := NewMetrics()
	checker := NewChecker(NewCollector(loader, "trained"), NewAlerter(config.MonitoringConfig{}), metrics,
		config.MonitoringConfig{CheckIntervalSecs: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return loader.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
	assert.Equal(t, 100000.0, testutil.ToFloat64(metrics.outstanding))
}

func TestChecker_CancelledBeforeStart(t *testing.T) {
	loader := &mockLoader{doc: portfolio()}
	checker := NewChecker(NewCollector(loader, "trained"), NewAlerter(config.MonitoringConfig{}), nil,
		config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Zero(t, loader.calls.Load())
}
