package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/fx"
)

// RateRefresher writes one day's FX table.
type RateRefresher interface {
	Refresh(ctx context.Context, date core.Date) (fx.RefreshResult, error)
}

// SnapshotExporter exports a user's net-worth snapshot.
type SnapshotExporter interface {
	Export(ctx context.Context, userID string, asOf core.Date) (string, error)
}

// JobWorker executes job messages consumed from AMQP.
type JobWorker struct {
	refresher RateRefresher
	exporter  SnapshotExporter
}

// NewJobWorker builds a worker. exporter may be nil when no snapshot sink is configured.
func NewJobWorker(refresher RateRefresher, exporter SnapshotExporter) *JobWorker {
	return &JobWorker{refresher: refresher, exporter: exporter}
}

// Handle dispatches msg by kind. It satisfies amqp.Handler.
func (w *JobWorker) Handle(ctx context.Context, msg *amqp.JobMessage) error {
	switch msg.Kind {
	case amqp.KindFxRefresh:
		return w.handleFxRefresh(ctx, msg)
	case amqp.KindSnapshotExport:
		return w.handleSnapshotExport(ctx, msg)
	default:
		return fmt.Errorf("unknown job kind %q", msg.Kind)
	}
}

func (w *JobWorker) handleFxRefresh(ctx context.Context, msg *amqp.JobMessage) error {
	slog.InfoContext(ctx, "Processing FX refresh message", "date", msg.Date.String())

	res, err := w.refresher.Refresh(ctx, msg.Date)
	if err != nil {
		return fmt.Errorf("refresh fx rates: %w", err)
	}

	slog.InfoContext(ctx, "FX refresh completed",
		"date", res.Date.String(),
		"written", res.Written,
		"skipped", len(res.Skipped))
	return nil
}

func (w *JobWorker) handleSnapshotExport(ctx context.Context, msg *amqp.JobMessage) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No snapshot exporter configured, skipping export",
			"user_id", msg.UserID)
		return nil
	}

	ref, err := w.exporter.Export(ctx, msg.UserID, msg.Date)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot export completed",
		"user_id", msg.UserID,
		"date", msg.Date.String(),
		"ref", ref)
	return nil
}
