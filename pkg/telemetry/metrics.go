package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for orgforge. All record methods are
// safe to call on a disabled (no-op) instance.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	stepsSkipped  *prometheus.CounterVec

	// Executor metrics
	executorCalls    *prometheus.CounterVec
	executorDuration *prometheus.HistogramVec
	executorErrors   *prometheus.CounterVec

	// Org metrics
	orgsProvisioned *prometheus.CounterVec
	orgsTornDown    *prometheus.CounterVec

	// Error and policy metrics
	errorsByCode  *prometheus.CounterVec
	policyDenials *prometheus.CounterVec

	// System metrics
	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; every vector stays nil.
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

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of recipe runs started",
			},
			[]string{"recipe_type"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of recipe runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of recipe runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of plan steps executed",
			},
			[]string{"action", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of plan step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"action", "engine"},
		),
		stepsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_skipped_total",
				Help:      "Total number of steps skipped during plan compilation",
			},
			[]string{"reason"},
		),

		executorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executor_calls_total",
				Help:      "Total number of executor invocations",
			},
			[]string{"executor", "action"},
		),
		executorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "executor_call_duration_seconds",
				Help:      "Duration of executor invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"executor", "action"},
		),
		executorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executor_errors_total",
				Help:      "Total number of executor failures",
			},
			[]string{"executor", "action"},
		),

		orgsProvisioned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orgs_provisioned_total",
				Help:      "Total number of orgs provisioned",
			},
			[]string{"kind", "status"},
		),
		orgsTornDown: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orgs_torn_down_total",
				Help:      "Total number of orgs torn down",
			},
			[]string{"kind", "status"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of classified errors by code",
			},
			[]string{"code"},
		),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Total number of runs blocked by policy",
			},
			[]string{"policy"},
		),

		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active recipe runs",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.stepsSkipped,
		m.executorCalls,
		m.executorDuration,
		m.executorErrors,
		m.orgsProvisioned,
		m.orgsTornDown,
		m.errorsByCode,
		m.policyDenials,
		m.activeRuns,
	)

	return m, nil
}

// Run metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(recipeType string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(recipeType).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Step metrics

// RecordStepExecution records the execution of one plan step.
func (m *Metrics) RecordStepExecution(action, engine, status string, duration time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(action, status).Inc()
	m.stepDuration.WithLabelValues(action, engine).Observe(duration.Seconds())
}

// RecordStepSkipped records a step excluded from the plan.
func (m *Metrics) RecordStepSkipped(reason string) {
	if m.stepsSkipped == nil {
		return
	}
	m.stepsSkipped.WithLabelValues(reason).Inc()
}

// Executor metrics

// RecordExecutorCall records an executor invocation with its duration.
func (m *Metrics) RecordExecutorCall(executor, action string, duration time.Duration) {
	if m.executorCalls == nil {
		return
	}
	m.executorCalls.WithLabelValues(executor, action).Inc()
	m.executorDuration.WithLabelValues(executor, action).Observe(duration.Seconds())
}

// RecordExecutorError records an executor failure.
func (m *Metrics) RecordExecutorError(executor, action string) {
	if m.executorErrors == nil {
		return
	}
	m.executorErrors.WithLabelValues(executor, action).Inc()
}

// Org metrics

// RecordOrgProvisioned records a provisioned org. Kind is "scratch" or
// "persistent".
func (m *Metrics) RecordOrgProvisioned(kind, status string) {
	if m.orgsProvisioned == nil {
		return
	}
	m.orgsProvisioned.WithLabelValues(kind, status).Inc()
}

// RecordOrgTornDown records a torn-down org.
func (m *Metrics) RecordOrgTornDown(kind, status string) {
	if m.orgsTornDown == nil {
		return
	}
	m.orgsTornDown.WithLabelValues(kind, status).Inc()
}

// Error and policy metrics

// RecordError records a classified error by code.
func (m *Metrics) RecordError(code string) {
	if m.errorsByCode == nil || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// RecordPolicyDenial records a run blocked by the named policy.
func (m *Metrics) RecordPolicyDenial(policy string) {
	if m.policyDenials == nil {
		return
	}
	m.policyDenials.WithLabelValues(policy).Inc()
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
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
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
