package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	applog "finboard/internal/log"
	"finboard/internal/services"
)

func TestNumber_MarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"769.23", "769.23"},
		{"1000000", "1000000"},
		{"-0.5", "-0.5"},
		{"0", "0"},
	}
	for _, tt := range tests {
		b, err := json.Marshal(Number{decimal.RequireFromString(tt.in)})
		if err != nil {
			t.Fatalf("marshal %s: %v", tt.in, err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal(%s) = %s, want %s", tt.in, b, tt.want)
		}
	}

	var n Number
	if err := json.Unmarshal([]byte(`"12.5"`), &n); err != nil || n.String() != "12.5" {
		t.Errorf("unmarshal quoted number: %v %s", err, n.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.NewValidationError("name", "is required"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("load account: %w", core.ErrNotFound), http.StatusNotFound},
		{"settings", core.ErrSettingsNotFound, http.StatusNotFound},
		{"conflict", core.ErrConflict, http.StatusConflict},
		{"upstream", core.ErrUpstreamUnavailable, http.StatusBadGateway},
		{"no exporter", services.ErrNoExporter, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil), errors.New("open /var/lib/finboard.db: permission denied"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "permission") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), core.NewValidationError("currencyCode", "must be a 3-letter currency code"))
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Field != "currencyCode" || !strings.Contains(body.Error, "3-letter") {
		t.Errorf("unexpected validation body %+v", body)
	}
}

func TestWriteError_LogsServerErrorsWithRouteComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	h := applog.Middleware(logger)(applog.ComponentMiddleware(applog.ComponentLedger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.New("boom"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/accounts", nil))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "component=ledger", "operation=create", "status_code=500", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
	if n := strings.Count(out, "component="); n != 1 {
		t.Errorf("expected one component field, got %d in %q", n, out)
	}
}

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusCreated).Header("Location", "/api/accounts?id=a1").Body(map[string]string{"id": "a1"}).Write(rec)
	if rec.Code != http.StatusCreated || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Location") != "/api/accounts?id=a1" {
		t.Error("missing custom header")
	}

	rec = httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("expected empty 204, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	NewJSONResponse().Body(func() {}).Write(rec)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for unencodable body, got %d", rec.Code)
	}
}

func TestEncoder_Summary(t *testing.T) {
	s := core.Summary{
		AsOf:              core.NewDate(2025, 5, 15),
		BaseCurrency:      "KRW",
		TotalNetWorthBase: decimal.RequireFromString("3525000.4"),
		ByCurrency: []core.CurrencyTotal{
			{Currency: "USD", Total: decimal.RequireFromString("2711.538461")},
			{Currency: "JPY", Total: decimal.RequireFromString("352500.5")},
		},
		Last30DaysSeries:  []core.SeriesPoint{{Date: core.NewDate(2025, 5, 15), Value: decimal.RequireFromString("3525000.4")}},
		CategoryBreakdown: []core.CategoryTotal{{Category: "Food", Total: decimal.NewFromInt(50000)}},
	}

	got := encoder{rule: core.RoundBankers}.summary(s)
	if got.TotalNetWorthBase.String() != "3525000" {
		t.Errorf("net worth = %s", got.TotalNetWorthBase)
	}
	if got.ByCurrency[0].Total.String() != "2711.54" || got.ByCurrency[1].Total.String() != "352500" {
		t.Errorf("unexpected display totals %+v", got.ByCurrency)
	}
	if got.FallbackRates == nil || got.Unpriced == nil {
		t.Error("lists must encode as [] not null")
	}

	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"total":2711.54`) {
		t.Errorf("expected bare number in %s", b)
	}
}
