package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/core"
	"finboard/internal/sheets"
)

// Summarizer computes a dashboard summary.
type Summarizer interface {
	Summarize(ctx context.Context, userID string, asOf core.Date) (core.Summary, error)
}

// SnapshotService exports rounded net-worth snapshots to an external ledger.
type SnapshotService struct {
	summaries Summarizer
	writer    sheets.SnapshotWriter
	now       func() time.Time
}

func NewSnapshotService(summaries Summarizer, writer sheets.SnapshotWriter) *SnapshotService {
	return &SnapshotService{summaries: summaries, writer: writer, now: time.Now}
}

// SnapshotFromSummary rounds the summary totals with the user's rounding rule.
func SnapshotFromSummary(s core.Summary, exportedAt time.Time) sheets.Snapshot {
	byCurrency := make([]core.CurrencyTotal, len(s.ByCurrency))
	for i, ct := range s.ByCurrency {
		byCurrency[i] = core.CurrencyTotal{
			Currency: ct.Currency,
			Total:    core.RoundMoney(ct.Total, ct.Currency, s.RoundingRule),
		}
	}
	return sheets.Snapshot{
		UserID:        s.UserID,
		AsOf:          s.AsOf,
		BaseCurrency:  s.BaseCurrency,
		NetWorth:      core.RoundMoney(s.TotalNetWorthBase, s.BaseCurrency, s.RoundingRule),
		ByCurrency:    byCurrency,
		FallbackRates: len(s.FallbackRates),
		ExportedAt:    exportedAt.UTC(),
	}
}

// Export summarizes userID at asOf and appends the result. It returns the row reference.
func (s *SnapshotService) Export(ctx context.Context, userID string, asOf core.Date) (string, error) {
	if s.writer == nil {
		return "", fmt.Errorf("export snapshot: no writer configured")
	}
	summary, err := s.summaries.Summarize(ctx, userID, asOf)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	snap := SnapshotFromSummary(summary, s.now())
	ref, err := s.writer.AppendSnapshot(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("append snapshot: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot exported",
		"user_id", userID,
		"as_of", snap.AsOf.String(),
		"net_worth", snap.NetWorth.String(),
		"ref", ref)
	return ref, nil
}
