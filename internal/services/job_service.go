package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finboard/internal/core"
	"finboard/internal/fx"
)

// JobPublisher enqueues background jobs.
type JobPublisher interface {
	PublishFxRefresh(ctx context.Context, date core.Date) error
	PublishSnapshotExport(ctx context.Context, userID string, date core.Date) error
}

// SnapshotExporter exports a user's net-worth snapshot.
type SnapshotExporter interface {
	Export(ctx context.Context, userID string, asOf core.Date) (string, error)
}

// ErrNoExporter is returned when a snapshot is requested but no sink is configured.
var ErrNoExporter = errors.New("snapshot export not configured")

// JobService runs FX refreshes and snapshot exports inline or hands them to the worker.
type JobService struct {
	refresher RateRefresher
	exporter  SnapshotExporter
	publisher JobPublisher
	// ratesChanged runs after an inline refresh wrote at least one rate.
	ratesChanged func()
}

// NewJobService wires the job runners. exporter and publisher may be nil.
func NewJobService(refresher RateRefresher, exporter SnapshotExporter, publisher JobPublisher) *JobService {
	return &JobService{refresher: refresher, exporter: exporter, publisher: publisher}
}

// OnRatesChanged registers fn to run after an inline refresh stored new rates. It
// returns the service for chaining.
func (s *JobService) OnRatesChanged(fn func()) *JobService {
	s.ratesChanged = fn
	return s
}

// CanQueue reports whether jobs can be handed to a worker.
func (s *JobService) CanQueue() bool {
	return s.publisher != nil
}

// RefreshRates refreshes the FX table of date. With async and a publisher the job is
// queued and queued is true; a failed publish falls back to running inline.
func (s *JobService) RefreshRates(ctx context.Context, date core.Date, async bool) (res fx.RefreshResult, queued bool, err error) {
	if async && s.publisher != nil {
		err := s.publisher.PublishFxRefresh(ctx, date)
		if err == nil {
			return fx.RefreshResult{Date: date}, true, nil
		}
		slog.ErrorContext(ctx, "Failed to queue FX refresh, running inline",
			"date", date.String(),
			"error", err)
	}
	res, err = s.refresher.Refresh(ctx, date)
	if err != nil {
		return fx.RefreshResult{}, false, fmt.Errorf("refresh fx rates: %w", err)
	}
	if res.Written > 0 && s.ratesChanged != nil {
		s.ratesChanged()
	}
	return res, false, nil
}

// ExportSnapshot queues a snapshot export when a publisher exists, otherwise exports
// inline and returns the row reference.
func (s *JobService) ExportSnapshot(ctx context.Context, userID string, asOf core.Date) (ref string, queued bool, err error) {
	if s.publisher != nil {
		err := s.publisher.PublishSnapshotExport(ctx, userID, asOf)
		if err == nil {
			return "", true, nil
		}
		slog.ErrorContext(ctx, "Failed to queue snapshot export, running inline",
			"user_id", userID,
			"error", err)
	}
	if s.exporter == nil {
		return "", false, ErrNoExporter
	}
	ref, err = s.exporter.Export(ctx, userID, asOf)
	if err != nil {
		return "", false, err
	}
	return ref, false, nil
}
