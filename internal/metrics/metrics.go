package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baharkarakas/webpool/internal/worker"
)

type Metrics struct {
	reg *prometheus.Registry

	// Worker pool
	JobsSubmitted  prometheus.Counter
	JobsCompleted  prometheus.Counter
	JobDuration    prometheus.Histogram
	WorkerFailures prometheus.Counter

	// Page server
	Connections *prometheus.CounterVec

	// Admin API
	HTTPLatency *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webpool_jobs_submitted_total",
			Help: "Total jobs submitted to the worker pool",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webpool_jobs_completed_total",
			Help: "Total jobs that ran to completion",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webpool_job_duration_seconds",
			Help:    "Job execution time",
			Buckets: prometheus.DefBuckets,
		}),
		WorkerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webpool_worker_failures_total",
			Help: "Workers stopped by a panicking job",
		}),
		Connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpool_connections_total",
				Help: "Connections served, by response status",
			},
			[]string{"status"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_latency_seconds",
				Help:    "Latency of admin HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	m.reg.MustRegister(
		m.JobsSubmitted,
		m.JobsCompleted,
		m.JobDuration,
		m.WorkerFailures,
		m.Connections,
		m.HTTPLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves /metrics for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// WatchPool exports gauges read from stats on every scrape.
func (m *Metrics) WatchPool(stats func() worker.Stats) {
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "webpool_worker_queue_depth",
			Help: "Current worker queue depth",
		}, func() float64 { return float64(stats().Pending) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "webpool_workers_busy",
			Help: "Workers currently executing a job",
		}, func() float64 { return float64(stats().Busy) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "webpool_workers_live",
			Help: "Workers still running their dispatch loop",
		}, func() float64 { return float64(stats().Running) }),
	)
}

// PoolObserver feeds worker pool events into the counters.
func (m *Metrics) PoolObserver() worker.Observer { return poolObserver{m} }

type poolObserver struct{ m *Metrics }

func (o poolObserver) JobQueued() { o.m.JobsSubmitted.Inc() }

func (o poolObserver) JobStarted(int) {}

func (o poolObserver) JobFinished(_ int, elapsed time.Duration) {
	o.m.JobsCompleted.Inc()
	o.m.JobDuration.Observe(elapsed.Seconds())
}

func (o poolObserver) WorkerExited(_ int, err error) {
	if err != nil {
		o.m.WorkerFailures.Inc()
	}
}
