package google

import (
	"context"
	"os"
	"testing"

	"finboard/internal/core"
	ports "finboard/internal/sheets"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	oldID, had := os.LookupEnv("GOOGLE_SPREADSHEET_ID")
	defer func() {
		if had {
			os.Setenv("GOOGLE_SPREADSHEET_ID", oldID)
		}
	}()
	os.Unsetenv("GOOGLE_SPREADSHEET_ID")

	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected credentials error")
	}
}

func TestAppendSnapshot_NoService(t *testing.T) {
	c := New(nil, "sheet-id", "2025 Net Worth")
	_, err := c.AppendSnapshot(context.Background(), ports.Snapshot{UserID: "u1", AsOf: core.NewDate(2025, 1, 1)})
	if err == nil {
		t.Fatal("expected error without service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	cases := []struct {
		base string
		year int
		want string
	}{
		{"Net Worth", 2025, "2025 Net Worth"},
		{"2024 Net Worth", 2025, "2024 Net Worth"},
		{"  Assets ", 2026, "2026 Assets"},
		{"", 2025, ""},
	}
	for _, tc := range cases {
		if got := yearPrefixedName(tc.base, tc.year); got != tc.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tc.base, tc.year, got, tc.want)
		}
	}
}
