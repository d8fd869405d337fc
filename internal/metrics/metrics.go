package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podpulse/podpulse/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal prometheus.Counter

	profilingActive prometheus.Gauge

	// probe state metrics: the whole point of this service is flipping
	// these and watching what kubernetes does
	probeLive      prometheus.Gauge
	probeReady     prometheus.Gauge
	toggleTotal    *prometheus.CounterVec
	stressRuns     prometheus.Counter
	stressDuration prometheus.Histogram
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		probeLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_live",
			Help: "Current liveness flag (1 = healthy, 0 = toggled unhealthy)",
		}),
		probeReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_ready",
			Help: "Current readiness flag (1 = ready, 0 = toggled not ready)",
		}),
		toggleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_toggles_total",
			Help: "Total flag flips by flag name",
		}, []string{"flag"}),
		stressRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stress_runs_total",
			Help: "Total completed CPU stress windows",
		}),
		stressDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stress_duration_seconds",
			Help:    "Wall time of completed CPU stress windows",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.errorsTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.profilingActive,
		m.probeLive,
		m.probeReady,
		m.toggleTotal,
		m.stressRuns,
		m.stressDuration,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        app,
		"component":  component,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_date": vi.BuildDate,
		"vcs_dirty":  dirty,
		"go_version": vi.GoVersion,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// SetProbeFlag keeps the probe gauges in step with the health state.
// flag is "live" or "ready", matching the toggle callback names.
func (m *ServerMetrics) SetProbeFlag(flag string, value bool) {
	var g prometheus.Gauge
	switch flag {
	case "live":
		g = m.probeLive
	case "ready":
		g = m.probeReady
	default:
		return
	}
	if value {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

func (m *ServerMetrics) IncToggle(flag string) {
	m.toggleTotal.WithLabelValues(flag).Inc()
}

func (m *ServerMetrics) ObserveStress(seconds float64) {
	m.stressRuns.Inc()
	m.stressDuration.Observe(seconds)
}
