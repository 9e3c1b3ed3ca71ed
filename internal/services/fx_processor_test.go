package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finboard/internal/core"
	"finboard/internal/fx"
)

type countingRefresher struct {
	mu    sync.Mutex
	dates []core.Date
	err   error
}

func (c *countingRefresher) Refresh(_ context.Context, date core.Date) (fx.RefreshResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dates = append(c.dates, date)
	if c.err != nil {
		return fx.RefreshResult{}, c.err
	}
	return fx.RefreshResult{Date: date, Written: 25}, nil
}

func (c *countingRefresher) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dates)
}

func TestNewFxProcessor_Defaults(t *testing.T) {
	p := NewFxProcessor(&countingRefresher{}, FxProcessorConfig{})
	if p.config.Interval != 6*time.Hour {
		t.Errorf("expected Interval 6h, got %v", p.config.Interval)
	}
	if p.config.Timeout != 2*time.Minute {
		t.Errorf("expected Timeout 2m, got %v", p.config.Timeout)
	}
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestFxProcessor_RunOnce(t *testing.T) {
	r := &countingRefresher{}
	p := NewFxProcessor(r, DefaultFxProcessorConfig())
	p.now = clock

	if _, ok := p.LastResult(); ok {
		t.Fatal("expected no result before the first run")
	}
	p.RunOnce(context.Background())

	res, ok := p.LastResult()
	if !ok || res.Written != 25 || !res.Date.Equal(core.NewDate(2025, 5, 15)) {
		t.Errorf("unexpected last result %+v (ok=%v)", res, ok)
	}

	r.err = errors.New("db down")
	p.RunOnce(context.Background())
	if res, _ := p.LastResult(); res.Written != 25 {
		t.Error("a failed run must keep the previous result")
	}
}

func TestFxProcessor_StartStop(t *testing.T) {
	r := &countingRefresher{}
	p := NewFxProcessor(r, FxProcessorConfig{Interval: 10 * time.Millisecond})
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting twice")
	}

	deadline := time.Now().Add(time.Second)
	for r.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.calls() < 2 {
		t.Errorf("expected repeated refreshes, got %d", r.calls())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after stop")
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("second stop should be a no-op: %v", err)
	}
}
