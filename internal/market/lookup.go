// Package market answers "what was this instrument worth on a day".
package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/ports"
	"finboard/internal/providers"
)

// PriceSource resolves the latest known price of an instrument as of a day.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol, exchange string, asOf core.Date) (core.Price, bool, error)
}

type Lookup struct {
	store    ports.PriceStore
	provider providers.PriceProvider
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Lookup)

// WithClock replaces time.Now, which decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(l *Lookup) { l.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lookup) { l.logger = logger }
}

// NewLookup returns a price lookup. provider may be nil to only read stored prices.
func NewLookup(store ports.PriceStore, provider providers.PriceProvider, opts ...Option) *Lookup {
	l := &Lookup{store: store, provider: provider, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LatestPrice returns the most recent price dated on or before asOf.
//
// When asOf is today and nothing is stored for today, the provider is asked and its
// answer is stored under today before being returned. Two concurrent misses may both
// fetch; the last write wins. A provider failure falls back to the prior stored price.
func (l *Lookup) LatestPrice(ctx context.Context, symbol, exchange string, asOf core.Date) (core.Price, bool, error) {
	symbol, exchange = strings.ToUpper(strings.TrimSpace(symbol)), strings.ToUpper(strings.TrimSpace(exchange))

	prior, found, err := l.store.LatestPrice(ctx, symbol, exchange, asOf)
	if err != nil {
		return core.Price{}, false, fmt.Errorf("latest price %s.%s: %w", symbol, exchange, err)
	}

	today := core.Today(l.now)
	if !asOf.Equal(today) || (found && prior.AsOf.Equal(today)) || l.provider == nil {
		return prior, found, nil
	}

	q, err := l.provider.FetchPrice(ctx, symbol, exchange)
	if providers.Canceled(err) {
		return core.Price{}, false, fmt.Errorf("fetch price %s.%s: %w", symbol, exchange, err)
	}
	if err != nil {
		l.logger.WarnContext(ctx, "Price provider failed, using last known price",
			"symbol", symbol,
			"exchange", exchange,
			"has_prior", found,
			"error", err)
		return prior, found, nil
	}

	p := core.Price{Symbol: symbol, Exchange: exchange, AsOf: today, Price: q.Price, CurrencyCode: core.NormalizeCode(q.Currency)}
	if err := l.store.UpsertPrice(ctx, p); err != nil {
		return core.Price{}, false, fmt.Errorf("store price %s.%s: %w", symbol, exchange, err)
	}
	return p, true, nil
}
