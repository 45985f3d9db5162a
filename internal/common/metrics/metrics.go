// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeadSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loangenius_lead_submissions_total",
			Help: "Lead submissions by final outcome",
		},
		[]string{"outcome"},
	)

	LeadSubmitAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loangenius_lead_submit_attempts_total",
			Help: "Individual lead-details attempts by result code",
		},
		[]string{"result"},
	)

	OTPEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loangenius_otp_events_total",
			Help: "OTP challenge events",
		},
		[]string{"event"},
	)

	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loangenius_lookup_requests_total",
			Help: "Company and pincode lookups by outcome",
		},
		[]string{"kind", "outcome"},
	)

	PartnerTokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loangenius_partner_token_refreshes_total",
			Help: "Partner token fetches that reached the backend",
		},
	)

	PartnerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loangenius_partner_request_duration_seconds",
			Help:    "Partner backend request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
