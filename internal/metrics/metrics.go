// Package metrics provides Prometheus metrics for the volkit server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volkit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upload metrics
	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volkit_upload_bytes_total",
			Help: "Total bytes accepted by upload endpoints",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volkit_uploads_total",
			Help: "Total whole-file uploads",
		},
		[]string{"status"},
	)

	chunksReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volkit_chunks_received_total",
			Help: "Total upload chunks received",
		},
	)

	chunkSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volkit_chunk_sessions_active",
			Help: "Number of in-flight chunked upload sessions",
		},
	)

	reassembliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volkit_reassemblies_total",
			Help: "Total chunk reassembly attempts",
		},
		[]string{"status"},
	)

	// File operation metrics
	fileOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volkit_file_ops_total",
			Help: "Total file operations",
		},
		[]string{"op", "status"},
	)

	// Search metrics
	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "volkit_search_duration_seconds",
			Help:    "Recursive search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volkit_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volkit_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volkit_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Rate limit metrics
	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volkit_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records a whole-file upload.
func RecordUpload(bytes int64, success bool) {
	uploadBytesTotal.Add(float64(bytes))
	uploadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordChunkReceived records one accepted upload chunk.
func RecordChunkReceived(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
	chunksReceivedTotal.Inc()
}

// SetChunkSessionsActive sets the in-flight session gauge.
func SetChunkSessionsActive(count int64) {
	chunkSessionsActive.Set(float64(count))
}

// RecordReassembly records a reassembly attempt.
func RecordReassembly(success bool) {
	reassembliesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordFileOp records a file operation by type.
func RecordFileOp(op string, success bool) {
	fileOpsTotal.WithLabelValues(op, statusLabel(success)).Inc()
}

// RecordSearch records a search duration.
func RecordSearch(duration time.Duration) {
	searchDuration.Observe(duration.Seconds())
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitHit records a rate limit rejection.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
