package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry. Every method is safe on a nil receiver so
// components can take an optional *Metrics.
type Metrics struct {
	reg *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	cacheStores   *prometheus.CounterVec
	generations   *prometheus.CounterVec
	genLatency    *prometheus.HistogramVec
	llmTokens     *prometheus.CounterVec
	sandboxResult *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessongen_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lessongen_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 120},
		}, []string{"method", "route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessongen_cache_lookups_total",
			Help: "Artifact cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		cacheStores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessongen_cache_stores_total",
			Help: "Artifact cache writes by status.",
		}, []string{"status"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessongen_generations_total",
			Help: "Generation requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		genLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lessongen_backend_duration_seconds",
			Help:    "Generation backend latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"kind", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessongen_llm_tokens_total",
			Help: "Backend tokens by model and direction.",
		}, []string{"model", "direction"}),
		sandboxResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessongen_sandbox_results_total",
			Help: "Sandbox pipeline outcomes by stage.",
		}, []string{"stage", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency,
		m.cacheLookups, m.cacheStores,
		m.generations, m.genLatency, m.llmTokens,
		m.sandboxResult,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCacheStore(status string) {
	if m == nil {
		return
	}
	m.cacheStores.WithLabelValues(status).Inc()
}

func (m *Metrics) IncGeneration(kind, outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveBackend(kind, status, model string, dur time.Duration, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.genLatency.WithLabelValues(kind, status).Observe(dur.Seconds())
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(completionTokens))
	}
}

func (m *Metrics) IncSandbox(stage, status string) {
	if m == nil {
		return
	}
	m.sandboxResult.WithLabelValues(stage, status).Inc()
}
