package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "supaconnect"

const (
	OutcomeSuccess        = "success"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeUpstreamError  = "upstream_error"
	OutcomeInvalidJSON    = "invalid_json"
	OutcomeTooLarge       = "too_large"
	OutcomeSessionError   = "session_error"
)

var (
	// PreviewsTotal counts preview runs by outcome.
	PreviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "previews_total",
		Help:      "Total configuration previews by outcome",
	}, []string{"outcome"})

	// DiffChangesTotal counts reported changes by category.
	DiffChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diff_changes_total",
		Help:      "Total field-level changes reported by category",
	}, []string{"category"})

	// ManagementRequestsTotal counts management API calls by HTTP status.
	// Transport failures are recorded with status "error".
	ManagementRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "management",
		Name:      "requests_total",
		Help:      "Total management API requests by response status",
	}, []string{"status"})

	ManagementRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "management",
		Name:      "request_duration_seconds",
		Help:      "Management API request latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

func ObservePreview(outcome string) {
	PreviewsTotal.WithLabelValues(outcome).Inc()
}

func ObserveChanges(category string, count int) {
	if count <= 0 {
		return
	}
	DiffChangesTotal.WithLabelValues(category).Add(float64(count))
}

// ObserveManagementRequest records one management API call. A status of 0
// means the request never produced a response.
func ObserveManagementRequest(status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ManagementRequestsTotal.WithLabelValues(label).Inc()
	ManagementRequestDuration.Observe(elapsed.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
