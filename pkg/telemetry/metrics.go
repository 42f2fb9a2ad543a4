package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for build sessions. A nil *Metrics
// and a disabled one both record nothing.
type Metrics struct {
	config MetricsConfig

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	targetsBuilt   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	actionsFailed  *prometheus.CounterVec

	productions  *prometheus.CounterVec
	analyzerRuns *prometheus.CounterVec
	zonesLoaded  prometheus.Counter

	errorsByKind *prometheus.CounterVec

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of build runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of build runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of build runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		targetsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "targets_built_total",
				Help:      "Total number of targets whose action ran successfully",
			},
			[]string{"zone", "action"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of build actions in seconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),
		actionsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_failed_total",
				Help:      "Total number of failed build actions",
			},
			[]string{"action"},
		),
		productions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "productions_total",
				Help:      "Total number of source-target productions",
			},
			[]string{"rule"},
		),
		analyzerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyzer_runs_total",
				Help:      "Total number of analyzer applications",
			},
			[]string{"analyzer"},
		),
		zonesLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "zones_loaded_total",
				Help:      "Total number of zones whose instructions were loaded",
			},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of reported errors by kind",
			},
			[]string{"kind"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of build runs in progress",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.targetsBuilt,
		m.actionDuration,
		m.actionsFailed,
		m.productions,
		m.analyzerRuns,
		m.zonesLoaded,
		m.errorsByKind,
		m.activeRuns,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if !m.enabled() {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordTargetBuilt records a successful action.
func (m *Metrics) RecordTargetBuilt(zone, action string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.targetsBuilt.WithLabelValues(zone, action).Inc()
	m.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordActionFailed records an action that returned false or errored.
func (m *Metrics) RecordActionFailed(action string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.actionsFailed.WithLabelValues(action).Inc()
	m.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordProduction records one source-target link made by a rule.
func (m *Metrics) RecordProduction(rule string) {
	if !m.enabled() {
		return
	}
	m.productions.WithLabelValues(rule).Inc()
}

// RecordAnalyzerRun records one analyzer application.
func (m *Metrics) RecordAnalyzerRun(analyzer string) {
	if !m.enabled() {
		return
	}
	m.analyzerRuns.WithLabelValues(analyzer).Inc()
}

// RecordZoneLoaded records a zone whose instructions were interpreted.
func (m *Metrics) RecordZoneLoaded() {
	if !m.enabled() {
		return
	}
	m.zonesLoaded.Inc()
}

// RecordError records a reported error by kind.
func (m *Metrics) RecordError(kind string) {
	if !m.enabled() {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Registry returns the registry the metrics are registered with, or nil
// when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is done. It
// returns nil immediately when metrics are disabled.
func (m *Metrics) StartMetricsServer(ctx context.Context, errs func(error)) *http.Server {
	if !m.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed && errs != nil {
			errs(err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	return server
}
