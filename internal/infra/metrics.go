package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: время ответа Secure Access API
	UpstreamDuration *prometheus.HistogramVec

	// Errors: классификация отказов API (status, throttled, network)
	UpstreamErrors *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - закрыт, 1 - полуоткрыт, 2 - открыт)
	CircuitBreakerState prometheus.Gauge

	// Кэш ответов API
	CacheLookups *prometheus.CounterVec

	// Сколько событий ZTNA пришло из API (без учета снимков)
	ZTNAEventsCollected prometheus.Counter

	// Время сборки страниц дашборда
	RenderDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		UpstreamDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sse_upstream_request_duration_seconds",
			Help:    "Histogram of Secure Access API latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint", "status"}),

		UpstreamErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sse_upstream_errors_total",
			Help: "Total number of failed Secure Access API calls by kind.",
		}, []string{"endpoint", "kind"}),

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sse_upstream_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}),

		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sse_cache_lookups_total",
			Help: "Cache lookups by key and result.",
		}, []string{"key", "result"}), // result: hit, miss, error

		ZTNAEventsCollected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sse_ztna_events_collected_total",
			Help: "ZTNA activity events fetched from the API.",
		}),

		RenderDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sse_dashboard_render_duration_seconds",
			Help:    "Time spent building dashboard views.",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
	}
}
