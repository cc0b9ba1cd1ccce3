// Package metrics provides Prometheus metrics export for scheduler
// runs, adapted from ai/metrics/prometheus.go's exporter shape.
package metrics

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports scheduler metrics in Prometheus format:
// per-task outcomes, elapsed-time distributions, and live ledger
// occupancy.
type PrometheusExporter struct {
	registry *prometheus.Registry

	taskLatency  *prometheus.HistogramVec
	tasksTotal   *prometheus.CounterVec
	activeTasks  prometheus.Gauge
	cancelsTotal *prometheus.CounterVec

	workerProcessesInUse prometheus.Gauge
	workerThreadsInUse   prometheus.Gauge
	resourceUsage        *prometheus.GaugeVec

	mu sync.RWMutex
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry

	// Buckets for the task-latency histogram, in seconds.
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
// scoped to one process's scheduler runs.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.taskLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "task_latency_seconds",
			Help:      "Task execution latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"kind", "status"},
	)

	e.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Total number of tasks that reached a terminal state",
		},
		[]string{"kind", "status"},
	)

	e.activeTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "active_tasks",
			Help:      "Number of tasks currently started but not finished",
		},
	)

	e.cancelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "cancellations_total",
			Help:      "Total number of tasks cascade-cancelled, by reason",
		},
		[]string{"reason"},
	)

	e.workerProcessesInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "worker_processes_in_use",
			Help:      "Processes currently reserved against the global process budget",
		},
	)

	e.workerThreadsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "worker_threads_in_use",
			Help:      "Threads currently reserved against the global thread budget",
		},
	)

	e.resourceUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "parallelism",
			Subsystem: "scheduler",
			Name:      "resource_usage_percent",
			Help:      "Declared resource usage of active tasks, percent of the global budget",
		},
		[]string{"axis"},
	)

	registry.MustRegister(
		e.taskLatency,
		e.tasksTotal,
		e.activeTasks,
		e.cancelsTotal,
		e.workerProcessesInUse,
		e.workerThreadsInUse,
		e.resourceUsage,
	)

	return e
}

// RecordTaskOutcome records one task's terminal outcome.
func (e *PrometheusExporter) RecordTaskOutcome(kind string, succeeded bool, latency time.Duration) {
	status := "success"
	if !succeeded {
		status = "error"
	}
	e.tasksTotal.WithLabelValues(kind, status).Inc()
	e.taskLatency.WithLabelValues(kind, status).Observe(latency.Seconds())
}

// RecordCancellation records one cascade-cancellation, by reason
// ("dependency", "worker", or "resource").
func (e *PrometheusExporter) RecordCancellation(reason string) {
	e.cancelsTotal.WithLabelValues(reason).Inc()
}

// SetActiveTasks sets the number of tasks currently running.
func (e *PrometheusExporter) SetActiveTasks(count int) {
	e.activeTasks.Set(float64(count))
}

// SetWorkerOccupancy sets the current process/thread occupancy.
func (e *PrometheusExporter) SetWorkerOccupancy(processes, threads int) {
	e.workerProcessesInUse.Set(float64(processes))
	e.workerThreadsInUse.Set(float64(threads))
}

// SetResourceUsage sets the current declared usage of one resource
// axis ("system_processor", "system_memory", "graphics_processor", or
// "graphics_memory").
func (e *PrometheusExporter) SetResourceUsage(axis string, percent float64) {
	e.resourceUsage.WithLabelValues(axis).Set(percent)
}

// GetHandler returns the HTTP handler for the Prometheus metrics
// endpoint.
func (e *PrometheusExporter) GetHandler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.GetHandler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry backing this exporter.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}

// Snapshot captures a point-in-time gather of all metrics, useful for
// debugging without standing up an HTTP server.
func (e *PrometheusExporter) Snapshot() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := make(map[string]any)
	snapshot["timestamp"] = time.Now().Unix()
	gathered, err := e.registry.Gather()
	if err != nil {
		slog.Error("failed to gather metrics", "error", err)
	}
	snapshot["registry"] = gathered
	return snapshot
}

// Close releases the exporter's resources. It does not unregister
// collectors from a caller-supplied registry.
func (e *PrometheusExporter) Close() error {
	return nil
}
