package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sparvidata/automation-core/internal/health"
)

var (
	// Orchestrator tick loop

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "automation",
		Name:      "orchestrator_tick_duration_seconds",
		Help:      "Time taken to fetch and dispatch one tick's due jobs.",
		Buckets:   prometheus.DefBuckets,
	})

	JobsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Name:      "jobs_dispatched_total",
		Help:      "Total automation jobs dispatched, by automation type.",
	}, []string{"automation_type"})

	JobsSuppressedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Name:      "jobs_suppressed_total",
		Help:      "Total due jobs suppressed as duplicates by the in-tick dedup or status tracker.",
	}, []string{"automation_type"})

	WorkerPoolSaturatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "automation",
		Name:      "worker_pool_saturated_total",
		Help:      "Total job submissions rejected because the worker pool was at capacity.",
	})

	// Task executors

	JobExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "automation",
		Name:      "job_execution_duration_seconds",
		Help:      "Duration of a Task Executor run, by automation type and outcome.",
		Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"automation_type", "outcome"})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Name:      "jobs_completed_total",
		Help:      "Total jobs finished, by automation type and outcome.",
	}, []string{"automation_type", "outcome"})

	// Purge loop

	PurgeCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "automation",
		Name:      "purge_cycle_duration_seconds",
		Help:      "Time taken for one terminal-job purge cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	PurgedJobsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "automation",
		Name:      "purged_jobs_total",
		Help:      "Total terminal jobs removed by the purge loop.",
	})

	// HTTP

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "automation",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		TickDuration,
		JobsDispatchedTotal,
		JobsSuppressedTotal,
		WorkerPoolSaturatedTotal,
		JobExecutionDuration,
		JobsCompletedTotal,
		PurgeCycleDuration,
		PurgedJobsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer builds the metrics/health HTTP server: /metrics for Prometheus
// scraping, /healthz for liveness, /readyz for readiness. checker may be
// nil, in which case the health endpoints are omitted.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if checker != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeHealthResult(w, checker.Liveness(r.Context()))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			result := checker.Readiness(r.Context())
			if result.Status != "up" {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			writeHealthResult(w, result)
		})
	}

	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealthResult(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
