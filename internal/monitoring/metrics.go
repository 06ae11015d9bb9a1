// Package monitoring exposes Prometheus metrics for the loan lifecycle and
// runs periodic portfolio checks that raise webhook alerts.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/loan-desk/internal/apperr"
	"github.com/sells-group/loan-desk/internal/model"
)

const namespace = "loandesk"

// Metrics holds the service's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	requests     *prometheus.GaugeVec
	outstanding  prometheus.Gauge
	fallback     prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle operations by outcome (ok or error kind).",
		}, []string{"op", "outcome"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_decisions_total",
			Help:      "Eligibility decisions by classifier backend and label.",
		}, []string{"backend", "label"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		requests: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loan_requests",
			Help:      "Loan requests currently in each status.",
		}, []string{"status"}),
		outstanding: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_principal",
			Help:      "Principal balance across active loan accounts.",
		}),
		fallback: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classifier_fallback",
			Help:      "1 when the credit score rule is serving instead of the trained model.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTransition counts a lifecycle operation and its outcome.
func (m *Metrics) ObserveTransition(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
}

// ObserveDecision counts an eligibility decision.
func (m *Metrics) ObserveDecision(backend, label string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(backend, label).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}

// SetClassifierFallback flags whether the fallback rule is in use.
func (m *Metrics) SetClassifierFallback(active bool) {
	if m == nil {
		return
	}
	if active {
		m.fallback.Set(1)
		return
	}
	m.fallback.Set(0)
}

// SetPortfolio updates the portfolio gauges from a snapshot.
func (m *Metrics) SetPortfolio(snap *PortfolioSnapshot) {
	if m == nil || snap == nil {
		return
	}
	for _, s := range []model.Status{
		model.StatusRequested, model.StatusEligible, model.StatusRejected,
		model.StatusOfferSent, model.StatusOfferAccepted, model.StatusDisbursed,
	} {
		m.requests.WithLabelValues(string(s)).Set(float64(snap.ByStatus[s]))
	}
	m.outstanding.Set(float64(snap.OutstandingPrincipal))
}
