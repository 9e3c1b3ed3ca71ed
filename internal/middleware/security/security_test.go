package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"summary", http.MethodGet, "/api/dashboard/summary?asOf=2025-05-15", "curl/8.5.0", false},
		{"prices", http.MethodGet, "/api/prices?symbols=AAPL,005930", "finboard-web", false},
		{"traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"dotenv", http.MethodGet, "/.env", "", true},
		{"sql in query", http.MethodGet, "/api/accounts?id=1%20UNION%20SELECT", "", true},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/api/prices?symbols=" + strings.Repeat("A", 2100), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			req := httptest.NewRequest(tt.method, "/", nil)
			req.URL.Path, req.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			req.URL.RawQuery = strings.ReplaceAll(req.URL.RawQuery, "%20", " ")
			req.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(req); got != tt.want {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5555", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy xff", "10.0.0.2:80", "198.51.100.1, 10.0.0.9", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.2", "198.51.100.2"},
		{"garbage header", "10.0.0.2:80", "not-an-ip", "", "10.0.0.2"},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("expected error for invalid CIDR")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(req); got != "198.51.100.1" {
		t.Errorf("expected forwarded IP, got %q", got)
	}
}

func TestDetectorMiddleware_Blocks(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	if m := d.GetMetrics(); m.SuspiciousRequests != 1 || m.BlockedRequests != 1 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/summary", nil))
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("health endpoint should not get API cache headers")
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}
