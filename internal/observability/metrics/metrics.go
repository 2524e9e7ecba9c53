package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentaladmin_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentaladmin_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentaladmin_http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})

	httpResponseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentaladmin_http_response_bytes",
		Help:    "Size of HTTP response bodies",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"method", "path"})

	authzDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentaladmin_authz_denials_total",
		Help: "Admin area denials by enforcement layer and reason",
	}, []string{"layer", "reason"})

	adminActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentaladmin_admin_actions_total",
		Help: "Audit records appended by action type",
	}, []string{"action_type"})

	imageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentaladmin_image_uploads_total",
		Help: "Property image uploads by result",
	}, []string{"result"})

	readDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentaladmin_read_degradations_total",
		Help: "Read paths that fell back to empty values after a backend failure",
	}, []string{"view"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rentaladmin_circuit_breaker_state",
		Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open)",
	}, []string{"dependency"})

	orphanSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentaladmin_orphan_images_swept_total",
		Help: "Stored images without a property row, by sweep result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration, bytes int64) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	httpResponseBytes.WithLabelValues(method, path).Observe(float64(bytes))
}

// ObserveAuthzDenial counts a gate denial; layer is "middleware" or "guard"
func ObserveAuthzDenial(layer, reason string) {
	authzDenials.WithLabelValues(layer, reason).Inc()
}

// ObserveAdminAction counts one appended audit record
func ObserveAdminAction(actionType string) {
	adminActions.WithLabelValues(actionType).Inc()
}

// ObserveImageUpload records an upload attempt with a result label
func ObserveImageUpload(result string) {
	imageUploads.WithLabelValues(result).Inc()
}

// ObserveReadDegradation counts a read view served with zero values
func ObserveReadDegradation(view string) {
	readDegradations.WithLabelValues(view).Inc()
}

// ObserveOrphanSweep counts one orphaned image the sweeper handled
func ObserveOrphanSweep(result string) {
	orphanSweeps.WithLabelValues(result).Inc()
}

// ObserveBreakerState records the current state of a dependency's breaker
func ObserveBreakerState(dependency string, state int) {
	breakerState.WithLabelValues(dependency).Set(float64(state))
}
