package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/fx"
)

// RateRefresher writes one day's FX table.
type RateRefresher interface {
	Refresh(ctx context.Context, date core.Date) (fx.RefreshResult, error)
}

// FxProcessorConfig holds configuration for the scheduled FX refresh.
type FxProcessorConfig struct {
	// Interval is how often today's rates are refreshed (default: 6h)
	Interval time.Duration

	// Timeout bounds a single refresh run (default: 2m)
	Timeout time.Duration
}

// DefaultFxProcessorConfig returns sensible defaults
func DefaultFxProcessorConfig() FxProcessorConfig {
	return FxProcessorConfig{
		Interval: 6 * time.Hour,
		Timeout:  2 * time.Minute,
	}
}

// FxProcessor refreshes today's FX rates on a fixed interval.
type FxProcessor struct {
	refresher RateRefresher
	config    FxProcessorConfig
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	last    *fx.RefreshResult
}

func NewFxProcessor(refresher RateRefresher, config FxProcessorConfig) *FxProcessor {
	defaults := DefaultFxProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &FxProcessor{refresher: refresher, config: config, now: time.Now}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *FxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("fx processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "FX processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *FxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "FX processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "FX processor stop timed out")
		return ctx.Err()
	}
}

func (p *FxProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastResult returns the result of the most recent successful run, if any.
func (p *FxProcessor) LastResult() (fx.RefreshResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return fx.RefreshResult{}, false
	}
	return *p.last, true
}

func (p *FxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Refresh immediately on startup
	p.RunOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes today's rates. Failures are logged; the loop keeps going.
func (p *FxProcessor) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	today := core.Today(p.now)
	res, err := p.refresher.Refresh(runCtx, today)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled FX refresh failed", "date", today.String(), "error", err)
		return
	}

	p.mu.Lock()
	p.last = &res
	p.mu.Unlock()

	slog.InfoContext(ctx, "Scheduled FX refresh complete",
		"date", today.String(),
		"written", res.Written,
		"skipped", len(res.Skipped))
}
