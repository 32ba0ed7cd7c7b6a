// Package metrics exposes Prometheus collectors for rankings, reasoning calls
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultNamespace = "mentor_ranker"
	outcomeSuccess   = "none"
)

// Reasoning calls are bounded by a timeout of a few seconds.
var defaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 12, 20}

type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	runtime   bool

	rankings          *prometheus.CounterVec
	reasoningCalls    *prometheus.CounterVec
	reasoningFailures *prometheus.CounterVec
	reasoningLatency  prometheus.Histogram
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry registers the collectors on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) { m.runtime = true }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		buckets:   defaultLatencyBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(m.registry)

	m.rankings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rankings_total",
		Help:      "Rankings served, by the strategy that produced them.",
	}, []string{"source"})

	m.reasoningCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reasoning",
		Name:      "calls_total",
		Help:      "Reasoning service calls by outcome.",
	}, []string{"outcome"})

	m.reasoningFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reasoning",
		Name:      "failures_total",
		Help:      "Reasoning service failures by kind.",
	}, []string{"kind"})

	m.reasoningLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "reasoning",
		Name:      "duration_seconds",
		Help:      "Reasoning service call duration in seconds.",
		Buckets:   m.buckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	return m
}

func (m *Manager) ObserveRanking(source string) {
	m.rankings.WithLabelValues(source).Inc()
}

// ObserveReasoning records one reasoning call. kind is "none" on success.
func (m *Manager) ObserveReasoning(kind string, elapsed time.Duration) {
	m.reasoningLatency.Observe(elapsed.Seconds())
	if kind == outcomeSuccess {
		m.reasoningCalls.WithLabelValues("success").Inc()
		return
	}
	m.reasoningCalls.WithLabelValues("failure").Inc()
	m.reasoningFailures.WithLabelValues(kind).Inc()
}

func (m *Manager) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
