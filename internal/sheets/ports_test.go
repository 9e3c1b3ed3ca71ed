package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

func TestRow(t *testing.T) {
	s := Snapshot{
		UserID:       "u1",
		AsOf:         core.NewDate(2025, 5, 1),
		BaseCurrency: "KRW",
		NetWorth:     decimal.NewFromInt(1000000),
		ByCurrency: []core.CurrencyTotal{
			{Currency: "USD", Total: decimal.RequireFromString("769.23")},
		},
		ExportedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	row := Row(s)
	want := []any{"2025-05-01", "u1", "KRW", "1000000", 0, "2025-05-01T12:00:00Z", "USD", "769.23"}
	if len(row) != len(want) {
		t.Fatalf("expected %d cells, got %d: %v", len(want), len(row), row)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("cell %d: expected %v, got %v", i, want[i], row[i])
		}
	}
}
