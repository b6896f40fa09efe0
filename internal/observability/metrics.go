package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Completions       *prometheus.CounterVec
	UpstreamErrors    *prometheus.CounterVec
	CompletionLatency prometheus.Histogram
	Intents           *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	MemoryItems       prometheus.Counter
	ProfileAnalyses   *prometheus.CounterVec
}

// NewMetrics registers instruments on reg. Pass prometheus.DefaultRegisterer in production
// and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Chat completion requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream completion failures by provider and HTTP status class.",
		}, []string{"provider", "code"}),
		CompletionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Latency of chat completion calls in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		Intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "System intents seen in model output by result (parsed, parse_failed, rejected, unknown).",
		}, []string{"result"}),
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Application actions by type and outcome.",
		}, []string{"type", "outcome"}),
		MemoryItems: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_items_total",
			Help:      "Memory items indexed from appended messages.",
		}),
		ProfileAnalyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_analyses_total",
			Help:      "User profile re-analysis runs by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveCompletion(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Completions.WithLabelValues(provider, outcome).Inc()
	m.CompletionLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncUpstreamError(provider, code string) {
	if m == nil {
		return
	}
	m.UpstreamErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) IncIntent(result string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAction(actionType, outcome string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(actionType, outcome).Inc()
}

func (m *Metrics) IncMemoryItem() {
	if m == nil {
		return
	}
	m.MemoryItems.Inc()
}

func (m *Metrics) IncProfileAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.ProfileAnalyses.WithLabelValues(outcome).Inc()
}

// MetricsHandler serves the instruments registered on g. A nil g serves the default registry.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
