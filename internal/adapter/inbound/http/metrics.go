// Package http is the inbound HTTP adapter: it converts client requests
// into the gateway's request model, runs them through the pipeline, and
// writes the resulting response.
package http

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goldengate/goldengate/internal/domain/gate"
	"github.com/goldengate/goldengate/internal/domain/policy"
)

// Metrics holds all Prometheus metrics for the gateway. Pass to components
// that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	FilterDenials   prometheus.Counter
	PolicyDecisions *prometheus.CounterVec
	PendingGrants   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goldengate",
				Name:      "requests_total",
				Help:      "Total requests processed, by response status",
			},
			[]string{"status"},
		),
		RequestDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "goldengate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds, time locks included",
				Buckets:   prometheus.DefBuckets,
			},
		),
		FilterDenials: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "goldengate",
				Name:      "filter_denials_total",
				Help:      "Requests denied with 403 Verboten",
			},
		),
		PolicyDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "goldengate",
				Name:      "policy_decisions_total",
				Help:      "Policy grant decisions",
			},
			[]string{"result"}, // result=grant/deny/error
		),
		PendingGrants: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "goldengate",
				Name:      "pending_grants",
				Help:      "Requests currently suspended inside a policy grant",
			},
		),
	}
}

// observe records the outcome of one request.
func (m *Metrics) observe(resp *gate.Response, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(strconv.Itoa(resp.Status)).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
	if resp.Status == 403 {
		m.FilterDenials.Inc()
	}
}

// instrumentedPolicy wraps a policy to record grant decisions and the number
// of requests suspended inside Grant.
type instrumentedPolicy struct {
	policy.Policy
	metrics *Metrics
}

// InstrumentPolicy wraps p so its decisions show up in the metrics.
func InstrumentPolicy(p policy.Policy, m *Metrics) policy.Policy {
	if m == nil {
		return p
	}
	return &instrumentedPolicy{Policy: p, metrics: m}
}

func (p *instrumentedPolicy) Grant(ctx context.Context, entity string, req *gate.Request) (bool, error) {
	p.metrics.PendingGrants.Inc()
	defer p.metrics.PendingGrants.Dec()

	granted, err := p.Policy.Grant(ctx, entity, req)
	switch {
	case err != nil:
		p.metrics.PolicyDecisions.WithLabelValues("error").Inc()
	case granted:
		p.metrics.PolicyDecisions.WithLabelValues("grant").Inc()
	default:
		p.metrics.PolicyDecisions.WithLabelValues("deny").Inc()
	}
	return granted, err
}
