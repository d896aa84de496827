package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	cellRuns          *prometheus.CounterVec
	cellRunDuration   *prometheus.HistogramVec
	activeExecutions  prometheus.Gauge
	runAllTotal       prometheus.Counter
	runAllCells       prometheus.Histogram
	runAllDuration    prometheus.Histogram
	interpreterJobs   *prometheus.CounterVec
	interpreterTime   *prometheus.HistogramVec
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	renders           *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollector creates a collector registered with the default registerer
func NewCollector() *Collector {
	return NewCollectorWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegisterer creates a collector registered with reg
func NewCollectorWithRegisterer(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		cellRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbook_cell_runs_total",
				Help: "Total number of settled cell runs",
			},
			[]string{"outcome"},
		),
		cellRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbook_cell_run_duration_seconds",
				Help:    "Time from dispatch to terminal state",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		),
		activeExecutions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbook_active_executions",
				Help: "Number of registered execution handles",
			},
		),
		runAllTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbook_run_all_total",
				Help: "Total number of completed run-all sequences",
			},
		),
		runAllCells: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scriptbook_run_all_cells",
				Help:    "Number of cells visited per run-all",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		runAllDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scriptbook_run_all_duration_seconds",
				Help:    "Run-all duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		interpreterJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbook_interpreter_jobs_total",
				Help: "Total number of interpreter jobs handled by workers",
			},
			[]string{"status"},
		),
		interpreterTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbook_interpreter_job_duration_seconds",
				Help:    "Interpreter job duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbook_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbook_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbook_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbook_renders_total",
				Help: "Total number of markup renders",
			},
			[]string{"kind"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbook_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbook_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordCellRun records a settled cell run
func (c *Collector) RecordCellRun(outcome string, duration time.Duration) {
	c.cellRuns.WithLabelValues(outcome).Inc()
	c.cellRunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetActiveExecutions sets the number of currently active executions
func (c *Collector) SetActiveExecutions(count int) {
	c.activeExecutions.Set(float64(count))
}

// RecordRunAll records a finished run-all sequence
func (c *Collector) RecordRunAll(cells int, duration time.Duration) {
	c.runAllTotal.Inc()
	c.runAllCells.Observe(float64(cells))
	c.runAllDuration.Observe(duration.Seconds())
}

// RecordInterpreterJob records a job handled by the worker pool
func (c *Collector) RecordInterpreterJob(status string, duration time.Duration) {
	c.interpreterJobs.WithLabelValues(status).Inc()
	c.interpreterTime.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// RecordRender records a markup render of the given kind
func (c *Collector) RecordRender(kind string) {
	c.renders.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest records a served HTTP request
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
