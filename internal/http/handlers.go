package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"store": "ok"}
	if s.svc.Ready != nil {
		if err := s.svc.Ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	if s.svc.Jobs != nil && s.svc.Jobs.CanQueue() {
		checks["jobs"] = "queue"
	} else {
		checks["jobs"] = "inline"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}
