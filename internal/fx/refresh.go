package fx

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"finboard/internal/core"
	"finboard/internal/ports"
	"finboard/internal/providers"
)

// RefreshStore is what a refresh reads and writes.
type RefreshStore interface {
	ports.FxRateStore
	ports.CurrencyStore
}

// RefreshResult reports one refresh run.
type RefreshResult struct {
	Date    core.Date `json:"date"`
	Written int       `json:"written"`
	// Skipped lists "BASE/QUOTE" pairs the provider could not price. They keep whatever
	// was stored before.
	Skipped []string `json:"skipped"`
}

// Refresher writes the rate of every ordered pair of known currencies for a day.
type Refresher struct {
	store       RefreshStore
	provider    providers.RateProvider
	concurrency int
	logger      *slog.Logger
}

func NewRefresher(store RefreshStore, provider providers.RateProvider, concurrency int, logger *slog.Logger) *Refresher {
	if concurrency < 1 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{store: store, provider: provider, concurrency: concurrency, logger: logger}
}

// Refresh upserts rates for date. Running it twice for the same day leaves the same
// rows, overwritten with the latest provider values. Only store failures are errors.
func (r *Refresher) Refresh(ctx context.Context, date core.Date) (RefreshResult, error) {
	if err := date.Validate(); err != nil {
		return RefreshResult{}, err
	}
	currencies, err := r.store.ListCurrencies(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("list currencies: %w", err)
	}
	if r.provider == nil && len(currencies) > 1 {
		return RefreshResult{}, fmt.Errorf("refresh rates: no rate provider configured: %w", core.ErrUpstreamUnavailable)
	}

	var (
		mu     sync.Mutex
		result = RefreshResult{Date: date, Skipped: []string{}}
	)
	source := ""
	if r.provider != nil {
		source = providerSource(r.provider)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, b := range currencies {
		for _, q := range currencies {
			base, quote := b.Code, q.Code
			g.Go(func() error {
				rate := core.FxRate{Date: date, BaseCode: base, QuoteCode: quote, Rate: one, Source: core.SourceInternal}
				if base != quote {
					value, err := r.provider.FetchRate(gctx, base, quote, date)
					if err != nil || !value.IsPositive() {
						if providers.Canceled(err) {
							return err
						}
						r.logger.WarnContext(gctx, "Skipping FX pair",
							"base", base,
							"quote", quote,
							"date", date.String(),
							"error", err)
						mu.Lock()
						result.Skipped = append(result.Skipped, base+"/"+quote)
						mu.Unlock()
						return nil
					}
					rate.Rate, rate.Source = value, source
				}
				if err := r.store.UpsertFxRate(gctx, rate); err != nil {
					return fmt.Errorf("upsert rate %s/%s: %w", base, quote, err)
				}
				mu.Lock()
				result.Written++
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return RefreshResult{}, err
	}

	sort.Strings(result.Skipped)
	r.logger.InfoContext(ctx, "FX rates refreshed",
		"date", date.String(),
		"written", result.Written,
		"skipped", len(result.Skipped))
	return result, nil
}
