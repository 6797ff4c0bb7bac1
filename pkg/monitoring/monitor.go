package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_answers_submitted_total",
			Help: "Answers recorded by practice runs",
		},
		[]string{"correct"},
	)

	SessionsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_sessions_completed_total",
			Help: "Test sessions finalized by practice runs",
		},
	)

	SessionScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "study_session_score_percent",
			Help:    "Scores of finalized test sessions",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	SessionsReconciled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_sessions_reconciled_total",
			Help: "Unfinalized test sessions completed by reconciliation",
		},
	)

	RunsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_runs_evicted_total",
			Help: "Idle practice runs dropped from memory",
		},
	)

	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "study_active_runs",
			Help: "Practice runs currently held in memory",
		},
	)

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AnswersSubmitted,
			SessionsCompleted,
			SessionScores,
			SessionsReconciled,
			RunsEvicted,
			ActiveRuns,
		)
	})
}

// RecordAnswer counts one recorded answer
func RecordAnswer(correct bool) {
	AnswersSubmitted.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

// RecordCompletion counts one finalized session and its score
func RecordCompletion(score int) {
	SessionsCompleted.Inc()
	SessionScores.Observe(float64(score))
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
