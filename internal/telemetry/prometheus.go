package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"catmcp/internal/domain"
)

// PrometheusMetrics implements domain.Metrics on Prometheus collectors.
type PrometheusMetrics struct {
	invocationDuration *prometheus.HistogramVec
	invocationErrors   *prometheus.CounterVec
	cacheEvents        *prometheus.CounterVec
	batchFlushSize     *prometheus.HistogramVec
	registrations      *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		invocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catmcp_tool_invocation_duration_seconds",
				Help:    "Duration of dispatched tool invocations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool", "status"},
		),
		invocationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catmcp_tool_invocation_errors_total",
				Help: "Total failed tool invocations by error type",
			},
			[]string{"tool", "type"},
		),
		cacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catmcp_tool_cache_events_total",
				Help: "Cache interactions in the cached execution strategy",
			},
			[]string{"tool", "event"},
		),
		batchFlushSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catmcp_tool_batch_flush_size",
				Help:    "Number of coalesced calls per batch flush",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"tool"},
		),
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catmcp_tool_registrations_total",
				Help: "Registration pass outcomes per candidate",
			},
			[]string{"outcome"},
		),
	}
}

func (m *PrometheusMetrics) RecordInvocation(metric domain.InvocationMetric) {
	duration := metric.Duration
	if duration < 0 {
		duration = 0
	}
	m.invocationDuration.
		WithLabelValues(metric.Tool, string(metric.Status)).
		Observe(duration.Seconds())
	if metric.Status == domain.InvocationStatusError {
		m.invocationErrors.
			WithLabelValues(metric.Tool, string(metric.Type)).
			Inc()
	}
}

func (m *PrometheusMetrics) RecordCacheEvent(tool string, event domain.CacheEvent) {
	m.cacheEvents.WithLabelValues(tool, string(event)).Inc()
}

func (m *PrometheusMetrics) RecordBatchFlush(tool string, size int) {
	m.batchFlushSize.WithLabelValues(tool).Observe(float64(size))
}

func (m *PrometheusMetrics) RecordRegistration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}
