package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - umleitung_requests_total (counter): incremented per request with method, status class, and path labels
//   - umleitung_request_duration_seconds (histogram): request duration with method and path labels
//   - umleitung_streaming_connections_active (gauge): incremented while an SSE streaming response is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		sw.Close()

		duration := time.Since(start).Seconds()

		// Status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		path := metricPath(r.URL.Path)
		RequestsTotal.WithLabelValues(r.Method, statusStr, path).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// metricPath collapses unknown paths to keep label cardinality bounded.
func metricPath(p string) string {
	switch p {
	case "/v1/chat/completions", "/v1/models", "/v1/embeddings", "/v1/completions", "/healthz", "/metrics":
		return p
	default:
		return "other"
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code and
// track live SSE streams.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	w.beforeWrite()
	w.ResponseWriter.WriteHeader(status)
	if !w.written {
		w.status = status
		w.written = true
	}
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	w.beforeWrite()
	w.written = true
	return w.ResponseWriter.Write(b)
}

// beforeWrite bumps the streaming gauge when the first byte of an SSE
// response goes out. The matching Dec happens when the handler returns,
// via the deferred func registered here.
func (w *statusWriter) beforeWrite() {
	if w.written || w.streaming {
		return
	}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
		w.streaming = true
		StreamingConnections.Inc()
	}
}

// Close decrements the streaming gauge for streams opened by this writer.
func (w *statusWriter) Close() {
	if w.streaming {
		StreamingConnections.Dec()
		w.streaming = false
	}
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// This is essential for SSE streaming support.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
