package worker

import (
	"context"
	"errors"
	"testing"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/fx"
)

type fakeRefresher struct {
	dates []core.Date
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, date core.Date) (fx.RefreshResult, error) {
	f.dates = append(f.dates, date)
	return fx.RefreshResult{Date: date, Written: 25}, f.err
}

type fakeExporter struct {
	users []string
	err   error
}

func (f *fakeExporter) Export(_ context.Context, userID string, _ core.Date) (string, error) {
	f.users = append(f.users, userID)
	return "Sheet!A2", f.err
}

func TestJobWorker_Handle(t *testing.T) {
	day := core.NewDate(2025, 5, 1)
	ctx := context.Background()

	t.Run("fx refresh", func(t *testing.T) {
		r := &fakeRefresher{}
		w := NewJobWorker(r, nil)
		if err := w.Handle(ctx, amqp.NewFxRefreshMessage(day)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(r.dates) != 1 || !r.dates[0].Equal(day) {
			t.Errorf("refresh not called for %s: %v", day, r.dates)
		}
	})

	t.Run("fx refresh failure is returned", func(t *testing.T) {
		w := NewJobWorker(&fakeRefresher{err: errors.New("db down")}, nil)
		if err := w.Handle(ctx, amqp.NewFxRefreshMessage(day)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("snapshot export", func(t *testing.T) {
		e := &fakeExporter{}
		w := NewJobWorker(&fakeRefresher{}, e)
		if err := w.Handle(ctx, amqp.NewSnapshotExportMessage("u1", day)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(e.users) != 1 || e.users[0] != "u1" {
			t.Errorf("export not called for u1: %v", e.users)
		}
	})

	t.Run("snapshot without exporter is skipped", func(t *testing.T) {
		w := NewJobWorker(&fakeRefresher{}, nil)
		if err := w.Handle(ctx, amqp.NewSnapshotExportMessage("u1", day)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := NewJobWorker(&fakeRefresher{}, nil)
		if err := w.Handle(ctx, &amqp.JobMessage{Kind: "expense.sync", Date: day}); err == nil {
			t.Fatal("expected error for unknown kind")
		}
	})
}
