package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "veracity"

// PrometheusSink exports verification metrics on its own registry
type PrometheusSink struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	evidence  prometheus.Histogram
	deadlines prometheus.Counter
}

// NewPrometheusSink creates a sink and registers its collectors plus the
// Go runtime and process collectors
func NewPrometheusSink() *PrometheusSink {
	s := &PrometheusSink{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Completed verifications by strategy, verdict and cache outcome.",
		}, []string{"strategy", "verdict", "cache"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_duration_seconds",
			Help:      "End-to-end verification latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"strategy"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Provider failures by kind.",
		}, []string{"kind"}),
		evidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evidence_items",
			Help:      "Evidence items per verification.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		deadlines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_exceeded_total",
			Help:      "Verifications that hit their overall deadline.",
		}),
	}
	s.registry.MustRegister(
		s.requests, s.latency, s.failures, s.evidence, s.deadlines,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

func (s *PrometheusSink) Record(_ context.Context, ev Event) {
	s.requests.WithLabelValues(string(ev.Strategy), string(ev.Verdict), cacheLabel(ev.CacheHit)).Inc()
	s.latency.WithLabelValues(string(ev.Strategy)).Observe(ev.Latency.Seconds())
	s.evidence.Observe(float64(ev.EvidenceCount))
	for _, kind := range failureKinds(ev.Failures) {
		s.failures.WithLabelValues(kind).Add(float64(ev.Failures[kind]))
	}
	if ev.DeadlineExceeded {
		s.deadlines.Inc()
	}
}

// Registry exposes the underlying registry for tests and extra collectors
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus exposition format
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
