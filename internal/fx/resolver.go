// Package fx resolves currency conversion rates for a day.
//
// A rate is looked up in the store first, then fetched from the configured provider and
// stored. When neither knows the pair the resolver answers 1 and marks the result as a
// fallback; callers surface that flag instead of treating the figure as exact.
package fx

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/ports"
	"finboard/internal/providers"
)

var one = decimal.NewFromInt(1)

// Rate is a resolved conversion factor.
type Rate struct {
	Value decimal.Decimal
	// Fallback is set when no real rate was known and Value is the fallback 1.
	Fallback bool
	Source   string
}

// Convert multiplies amount by the rate.
func (r Rate) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.Value)
}

// RateSource is anything that can resolve a rate for a day.
type RateSource interface {
	Rate(ctx context.Context, base, quote string, date core.Date) (Rate, error)
}

type Resolver struct {
	store    ports.FxRateStore
	provider providers.RateProvider
	logger   *slog.Logger
}

// NewResolver returns a resolver. provider may be nil, in which case only stored rates
// are used.
func NewResolver(store ports.FxRateStore, provider providers.RateProvider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, provider: provider, logger: logger}
}

// Rate returns how many units of quote one unit of base buys on date.
// Store failures and canceled contexts are returned; other provider failures degrade
// to the fallback rate.
func (r *Resolver) Rate(ctx context.Context, base, quote string, date core.Date) (Rate, error) {
	base, quote = core.NormalizeCode(base), core.NormalizeCode(quote)
	if base == quote {
		return Rate{Value: one, Source: core.SourceInternal}, nil
	}

	stored, ok, err := r.store.GetFxRate(ctx, base, quote, date)
	if err != nil {
		return Rate{}, fmt.Errorf("resolve rate %s/%s on %s: %w", base, quote, date, err)
	}
	if ok {
		return Rate{Value: stored.Rate, Source: stored.Source}, nil
	}

	if r.provider != nil {
		value, err := r.provider.FetchRate(ctx, base, quote, date)
		if err == nil && value.IsPositive() {
			fetched := core.FxRate{Date: date, BaseCode: base, QuoteCode: quote, Rate: value, Source: providerSource(r.provider)}
			if err := r.store.UpsertFxRate(ctx, fetched); err != nil {
				return Rate{}, fmt.Errorf("store rate %s/%s on %s: %w", base, quote, date, err)
			}
			return Rate{Value: value, Source: fetched.Source}, nil
		}
		if providers.Canceled(err) {
			return Rate{}, fmt.Errorf("fetch rate %s/%s on %s: %w", base, quote, date, err)
		}
		if err != nil {
			r.logger.WarnContext(ctx, "Rate provider failed",
				"base", base,
				"quote", quote,
				"date", date.String(),
				"error", err)
		}
	}

	r.logger.WarnContext(ctx, "No FX rate known, using fallback rate 1",
		"base", base,
		"quote", quote,
		"date", date.String())
	return Rate{Value: one, Fallback: true}, nil
}

// Book returns a request-scoped memo over the resolver.
func (r *Resolver) Book() *Book {
	return NewBook(r)
}

// Sourcer names where a provider's rates come from.
type Sourcer interface {
	Source() string
}

func providerSource(p providers.RateProvider) string {
	if s, ok := p.(Sourcer); ok {
		return s.Source()
	}
	return "provider"
}

// Book memoizes rates for the lifetime of one computation so every conversion of the
// same pair on the same day uses one value. It is safe for concurrent use and must not
// outlive the request that created it.
type Book struct {
	src RateSource

	mu        sync.Mutex
	rates     map[bookKey]*bookEntry
	fallbacks map[string]struct{}
}

type bookKey struct {
	base, quote, date string
}

type bookEntry struct {
	once sync.Once
	rate Rate
	err  error
}

func NewBook(src RateSource) *Book {
	return &Book{src: src, rates: map[bookKey]*bookEntry{}, fallbacks: map[string]struct{}{}}
}

func (b *Book) Rate(ctx context.Context, base, quote string, date core.Date) (Rate, error) {
	k := bookKey{core.NormalizeCode(base), core.NormalizeCode(quote), date.String()}

	b.mu.Lock()
	e, ok := b.rates[k]
	if !ok {
		e = &bookEntry{}
		b.rates[k] = e
	}
	b.mu.Unlock()

	e.once.Do(func() {
		e.rate, e.err = b.src.Rate(ctx, k.base, k.quote, date)
		if e.err == nil && e.rate.Fallback {
			b.mu.Lock()
			b.fallbacks[k.base+"/"+k.quote+"@"+k.date] = struct{}{}
			b.mu.Unlock()
		}
	})
	return e.rate, e.err
}

// Fallbacks lists the pairs resolved at the fallback rate, as "BASE/QUOTE@date", sorted.
func (b *Book) Fallbacks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.fallbacks))
	for k := range b.fallbacks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
