package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentFX,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoContext(context.Background(), "Rates refreshed", FieldCurrency, "KRW")
	out := buf.String()
	if !strings.Contains(out, "component=fx") || !strings.Contains(out, "currency=KRW") {
		t.Errorf("unexpected log line %q", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentMarket).Warn("Price missing")
	if !strings.Contains(buf.String(), "component=market") {
		t.Errorf("expected market component, got %q", buf.String())
	}
}

func TestLogger_Slog(t *testing.T) {
	var buf bytes.Buffer
	newBufferLogger(&buf).Slog(ComponentSheets).Info("Snapshot appended")
	if !strings.Contains(buf.String(), "component=sheets") {
		t.Errorf("expected sheets component, got %q", buf.String())
	}
}

func TestMiddleware_CarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside handler")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("expected request id in %q", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("expected default logger, got %+v", l)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	ctx := context.Background()

	sl.LogEntityWrite(ctx, "account", OpCreate, "u1", "a1")
	if out := buf.String(); !strings.Contains(out, "entity=account") || !strings.Contains(out, "user_id=u1") {
		t.Errorf("unexpected entity log %q", out)
	}

	buf.Reset()
	sl.LogError(ctx, "Summary failed", errors.New("boom"), ComponentSummary, OpSummarize, NewFields().WithUser("u1"))
	if out := buf.String(); !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "error=boom") {
		t.Errorf("unexpected error log %q", out)
	}
	if out := buf.String(); !strings.Contains(out, "component=summary") || strings.Count(out, "component=") != 1 {
		t.Errorf("expected a single summary component, got %q", out)
	}

	buf.Reset()
	r := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	sl.LogHTTPEnd(ctx, r, http.StatusNotFound, 3, "127.0.0.1")
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected 4xx at warn level, got %q", buf.String())
	}
}
