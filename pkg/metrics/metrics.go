package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CertificatesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "certificates_issued_total", Help: "Certificates generated and stored"},
	)
	CertificatesReused = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "certificates_reused_total", Help: "Issuances resolved from an existing record"},
	)
	CertificateIssueFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "certificate_issue_failures_total", Help: "Issuances that failed"},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "emails_sent_total", Help: "Certificate emails delivered"},
	)
	EmailsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "emails_failed_total", Help: "Certificate emails that failed"},
	)

	BatchSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_send_duration_seconds",
			Help:    "Time spent processing one send batch",
			Buckets: prometheus.DefBuckets,
		},
	)
	PublishedJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "api_published_send_jobs_total", Help: "Async send jobs published to queue"},
	)
	WorkerJobsConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_send_jobs_consumed_total", Help: "Send jobs consumed"},
	)
	WorkerJobsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_send_jobs_failed_total", Help: "Send jobs that could not be processed"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration,
		CertificatesIssued, CertificatesReused, CertificateIssueFailures,
		EmailsSent, EmailsFailed,
		BatchSendDuration, PublishedJobsTotal, WorkerJobsConsumed, WorkerJobsFailed,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
