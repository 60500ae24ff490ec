package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// irp-api metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "irp_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"route", "method", "code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "irp_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ActiveRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "irp_active_requests",
		Help: "Current in-flight HTTP requests",
	})

	// irp-worker metrics
	JobTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "irp_job_total",
		Help: "Job completion count",
	}, []string{"op", "status"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "irp_job_duration_seconds",
		Help:    "Job end-to-end duration",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"op"})

	JobQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "irp_job_queue_depth",
		Help: "Pending + retryable FAILED jobs",
	})

	JobRetryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "irp_job_retry_total",
		Help: "Job retry count",
	}, []string{"op"})

	DequeueEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "irp_dequeue_empty_total",
		Help: "Empty poll count",
	})

	RequestStateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "irp_request_state_transitions_total",
		Help: "Request status transition count",
	}, []string{"from", "to"})

	StaleClaimReclaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "irp_stale_claim_reclaimed_total",
		Help: "Requests reclaimed from a stuck provisioning claim",
	})

	// provisioning engine metrics
	ToolStepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "irp_tool_step_duration_seconds",
		Help:    "External tool step duration",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"step"})

	ToolStepFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "irp_tool_step_fail_total",
		Help: "External tool step failure count",
	}, []string{"step", "kind"})

	ProvisionOutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "irp_provision_outcome_total",
		Help: "Orchestrator attempt outcome count",
	}, []string{"op", "outcome"})

	WorkspacesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "irp_workspaces_active",
		Help: "Workspace directories currently on disk",
	})
)

func RegisterAll(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, ActiveRequests,
		JobTotal, JobDuration, JobQueueDepth, JobRetryTotal, DequeueEmptyTotal,
		RequestStateTransitions, StaleClaimReclaimedTotal,
		ToolStepDuration, ToolStepFailTotal, ProvisionOutcomeTotal, WorkspacesActive,
	)
}
