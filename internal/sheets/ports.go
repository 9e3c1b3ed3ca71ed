package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

// Snapshot is one exported net-worth row. Amounts are already rounded for display.
type Snapshot struct {
	UserID        string
	AsOf          core.Date
	BaseCurrency  string
	NetWorth      decimal.Decimal
	ByCurrency    []core.CurrencyTotal
	FallbackRates int
	ExportedAt    time.Time
}

// Ports for outbound adapters.
type (
	// SnapshotWriter appends net-worth snapshots to an external ledger.
	SnapshotWriter interface {
		AppendSnapshot(ctx context.Context, s Snapshot) (rowRef string, err error)
	}

	// SnapshotLister reads back exported snapshots of a user.
	SnapshotLister interface {
		ListSnapshots(ctx context.Context, userID string) ([]Snapshot, error)
	}
)

// Row renders a snapshot as spreadsheet cells: day, user, base currency, net worth,
// fallback count, export time, then one currency/total pair per display currency.
func Row(s Snapshot) []any {
	row := []any{
		s.AsOf.String(),
		s.UserID,
		s.BaseCurrency,
		s.NetWorth.String(),
		s.FallbackRates,
		s.ExportedAt.UTC().Format(time.RFC3339),
	}
	for _, ct := range s.ByCurrency {
		row = append(row, ct.Currency, ct.Total.String())
	}
	return row
}
