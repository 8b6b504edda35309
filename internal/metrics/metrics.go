package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsStarted counts practice sessions by selected operation
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathdrill_sessions_started_total",
		Help: "Practice sessions started by operation filter",
	}, []string{"operation"})

	// SessionsCompleted counts sessions that reached their end
	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mathdrill_sessions_completed_total",
		Help: "Practice sessions completed",
	})

	// Attempts counts submitted answers by operation and result
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathdrill_attempts_total",
		Help: "Submitted answers by operation and result",
	}, []string{"operation", "result"})

	// Registrations counts provisioned accounts by origin (password or OAuth provider)
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathdrill_registrations_total",
		Help: "Accounts provisioned by origin",
	}, []string{"origin"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mathdrill_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"method", "status"})
)

// Result labels an attempt as correct or incorrect
func Result(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

// ObserveRequest records the duration of one HTTP request
func ObserveRequest(method string, status int, d time.Duration) {
	requestDuration.WithLabelValues(method, http.StatusText(status)).Observe(d.Seconds())
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
