// Package trace assigns request ids and logs every request with its outcome.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	applog "finboard/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.StructuredLogger
	metrics   *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	ServerErrors        int64
	AverageResponseTime int64 // in microseconds
	totalMicros         int64
}

// NewMiddleware creates a new trace middleware. logger may be nil to use the default.
func NewMiddleware(extractIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.FromContext(context.Background()).WithComponent(applog.ComponentTrace)
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    applog.NewStructuredLogger(logger),
		metrics:   &Metrics{},
	}
}

// Middleware returns HTTP middleware for request tracing. A well-formed incoming
// X-Request-ID is kept, otherwise a new one is generated.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		n := atomic.AddInt64(&m.metrics.TotalRequests, 1)
		total := atomic.AddInt64(&m.metrics.totalMicros, duration.Microseconds())
		atomic.StoreInt64(&m.metrics.AverageResponseTime, total/n)
		if rw.statusCode >= 500 {
			atomic.AddInt64(&m.metrics.ServerErrors, 1)
		}

		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		ServerErrors:        atomic.LoadInt64(&m.metrics.ServerErrors),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}

// LoggerMiddleware puts a request-scoped logger carrying the request id into the
// context. It must run inside Middleware.
func LoggerMiddleware(logger *applog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return applog.Middleware(logger)(applog.RequestIDMiddleware(func(r *http.Request) string {
			return GetRequestID(r.Context())
		})(next))
	}
}
