package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	maxDelay         = 5 * time.Second
)

// Retrying wraps a provider with bounded retries and exponential backoff. Errors that
// survive every attempt are reported as core.ErrUpstreamUnavailable.
type Retrying struct {
	rates     RateProvider
	prices    PriceProvider
	attempts  int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps p. attempts < 1 means the default of 3.
func NewRetrying(p Provider, attempts int, baseDelay time.Duration) *Retrying {
	if attempts < 1 {
		attempts = defaultAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Retrying{rates: p, prices: p, attempts: attempts, baseDelay: baseDelay, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff returns base * 2^attempt capped at maxDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

// retryable reports whether err may go away on a later attempt.
func retryable(err error) bool {
	if Canceled(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, core.ErrUpstreamUnavailable)
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, backoff(r.baseDelay, attempt-1)); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			break
		}
		slog.WarnContext(ctx, "Provider call failed, retrying",
			"operation", op,
			"attempt", attempt+1,
			"error", lastErr)
	}
	if errors.Is(lastErr, core.ErrUpstreamUnavailable) || Canceled(lastErr) {
		return lastErr
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrUpstreamUnavailable, lastErr)
}

func (r *Retrying) FetchRate(ctx context.Context, base, quote string, date core.Date) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := r.do(ctx, "fetch rate "+base+"/"+quote, func() error {
		var err error
		out, err = r.rates.FetchRate(ctx, base, quote, date)
		return err
	})
	return out, err
}

func (r *Retrying) FetchPrice(ctx context.Context, symbol, exchange string) (PriceQuote, error) {
	var out PriceQuote
	err := r.do(ctx, "fetch price "+symbol+"."+exchange, func() error {
		var err error
		out, err = r.prices.FetchPrice(ctx, symbol, exchange)
		return err
	})
	return out, err
}

// Source reports the wrapped provider's source name.
func (r *Retrying) Source() string {
	if s, ok := r.rates.(interface{ Source() string }); ok {
		return s.Source()
	}
	return "provider"
}
