package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/fx"
	"finboard/internal/market"
	"finboard/internal/ports"
	"finboard/internal/valuation"
)

// SummaryStore is what a dashboard summary reads.
type SummaryStore interface {
	ports.SettingsStore
	ports.AccountStore
	ports.TransactionStore
	ports.HoldingStore
	ports.CategoryStore
}

// SummaryConfig tunes the summary computation.
type SummaryConfig struct {
	// Concurrency bounds parallel holding valuations and series days (default: 8)
	Concurrency int
}

// SummaryService computes a user's dashboard valuation for one day.
type SummaryService struct {
	store    SummaryStore
	resolver *fx.Resolver
	prices   market.PriceSource
	series   cache.Cache[decimal.Decimal]
	config   SummaryConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewSummaryService wires the pipeline. series may be nil to disable caching of past
// series points.
func NewSummaryService(store SummaryStore, resolver *fx.Resolver, prices market.PriceSource, series cache.Cache[decimal.Decimal], config SummaryConfig) *SummaryService {
	if config.Concurrency < 1 {
		config.Concurrency = 8
	}
	return &SummaryService{
		store:    store,
		resolver: resolver,
		prices:   prices,
		series:   series,
		config:   config,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// WithClock replaces time.Now. It returns the service for chaining.
func (s *SummaryService) WithClock(now func() time.Time) *SummaryService {
	s.now = now
	return s
}

// portfolio is everything a valuation reads, loaded once per summary.
type portfolio struct {
	base      string
	accounts  []core.Account
	byAccount map[string][]core.Transaction
	txs       []core.Transaction
	holdings  []core.Holding
}

// Summarize values the user's accounts and holdings at asOf (today when empty).
// Any store failure aborts the whole summary.
func (s *SummaryService) Summarize(ctx context.Context, userID string, asOf core.Date) (core.Summary, error) {
	today := core.Today(s.now)
	if asOf.IsEmpty() {
		asOf = today
	}
	asOf = core.DateOf(asOf.Time)

	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load settings: %w", err)
	}

	pf, err := s.load(ctx, userID, settings.BaseCurrency)
	if err != nil {
		return core.Summary{}, err
	}

	book := s.resolver.Book()
	total, items, unpriced, err := s.valueAt(ctx, book, pf, asOf, true, s.config.Concurrency)
	if err != nil {
		return core.Summary{}, err
	}

	byCurrency, err := valuation.ToDisplay(ctx, book, valuation.Aggregate(items), settings.DisplayCurrencies, asOf)
	if err != nil {
		return core.Summary{}, err
	}

	series, err := s.trailingSeries(ctx, book, userID, pf, asOf, today)
	if err != nil {
		return core.Summary{}, err
	}

	categories, err := s.categoryBreakdown(ctx, book, userID, pf, asOf)
	if err != nil {
		return core.Summary{}, err
	}

	summary := core.Summary{
		UserID:            userID,
		AsOf:              asOf,
		BaseCurrency:      pf.base,
		RoundingRule:      settings.RoundingRule,
		TotalNetWorthBase: total,
		ByCurrency:        byCurrency,
		Last30DaysSeries:  series,
		CategoryBreakdown: categories,
		FallbackRates:     book.Fallbacks(),
		Unpriced:          unpriced,
	}

	s.logger.InfoContext(ctx, "Summary computed",
		"user_id", userID,
		"as_of", asOf.String(),
		"accounts", len(pf.accounts),
		"holdings", len(pf.holdings),
		"fallback_rates", len(summary.FallbackRates))

	return summary, nil
}

func (s *SummaryService) load(ctx context.Context, userID, base string) (*portfolio, error) {
	pf := &portfolio{base: core.NormalizeCode(base)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := s.store.ListAccounts(gctx, userID)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		pf.accounts = accounts
		return nil
	})
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, userID, ports.TransactionFilter{})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		pf.txs = txs
		return nil
	})
	g.Go(func() error {
		holdings, err := s.store.ListHoldings(gctx, userID)
		if err != nil {
			return fmt.Errorf("load holdings: %w", err)
		}
		pf.holdings = holdings
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pf.byAccount = valuation.ByAccount(pf.txs)
	return pf, nil
}

// valueAt computes net worth in the base currency at day d plus the native-currency
// items behind it. allHistory folds every transaction, otherwise only those up to d.
func (s *SummaryService) valueAt(ctx context.Context, rates fx.RateSource, pf *portfolio, d core.Date, allHistory bool, limit int) (decimal.Decimal, []valuation.Item, []string, error) {
	items := make([]valuation.Item, 0, len(pf.accounts)+len(pf.holdings))
	for _, a := range pf.accounts {
		txs := pf.byAccount[a.ID]
		balance := valuation.BalanceAsOf(txs, d)
		if allHistory {
			balance = valuation.Balance(txs)
		}
		items = append(items, valuation.Item{Currency: a.CurrencyCode, Amount: balance})
	}

	valuator := valuation.NewHoldingValuator(s.prices)
	values := make([]valuation.Valuation, len(pf.holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, h := range pf.holdings {
		g.Go(func() error {
			v, err := valuator.Value(gctx, h, d)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, nil, nil, err
	}

	var unpriced []string
	for i, v := range values {
		if !v.Priced {
			unpriced = append(unpriced, pf.holdings[i].Symbol+"."+pf.holdings[i].Exchange)
		}
		items = append(items, valuation.Item{Currency: v.Currency, Amount: v.Amount})
	}

	total := decimal.Zero
	for _, it := range items {
		if it.Amount.IsZero() {
			continue
		}
		r, err := rates.Rate(ctx, it.Currency, pf.base, d)
		if err != nil {
			return decimal.Zero, nil, nil, fmt.Errorf("convert %s to %s: %w", it.Currency, pf.base, err)
		}
		total = total.Add(r.Convert(it.Amount))
	}
	return total, items, unpriced, nil
}

func seriesKey(userID string, d core.Date) string {
	return userID + "|" + d.String()
}

// trackedRates records whether any rate it resolved was a fallback.
type trackedRates struct {
	src      fx.RateSource
	fallback atomic.Bool
}

func (t *trackedRates) Rate(ctx context.Context, base, quote string, date core.Date) (fx.Rate, error) {
	r, err := t.src.Rate(ctx, base, quote, date)
	if err == nil && r.Fallback {
		t.fallback.Store(true)
	}
	return r, err
}

// trailingSeries recomputes net worth for each of the SeriesDays days ending at asOf.
// Points for days before today are cached per user and day once they were valued
// with real rates and prices only.
func (s *SummaryService) trailingSeries(ctx context.Context, rates fx.RateSource, userID string, pf *portfolio, asOf, today core.Date) ([]core.SeriesPoint, error) {
	points := make([]core.SeriesPoint, core.SeriesDays)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i := 0; i < core.SeriesDays; i++ {
		d := asOf.AddDays(i - (core.SeriesDays - 1))
		points[i].Date = d
		cacheable := s.series != nil && d.Before(today)
		if cacheable {
			if v, ok := s.series.Get(seriesKey(userID, d)); ok {
				points[i].Value = v
				continue
			}
		}
		g.Go(func() error {
			tracked := &trackedRates{src: rates}
			v, _, unpriced, err := s.valueAt(gctx, tracked, pf, d, false, 1)
			if err != nil {
				return fmt.Errorf("series point %s: %w", d, err)
			}
			points[i].Value = v
			// Approximate points are recomputed until real rates and prices exist.
			if cacheable && !tracked.fallback.Load() && len(unpriced) == 0 {
				s.series.Set(seriesKey(userID, d), v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// categoryBreakdown sums this month's expenses up to asOf per category, each converted
// at the rate of its own date.
func (s *SummaryService) categoryBreakdown(ctx context.Context, rates fx.RateSource, userID string, pf *portfolio, asOf core.Date) ([]core.CategoryTotal, error) {
	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	filter := ports.TransactionFilter{Type: core.Expense, From: asOf.StartOfMonth(), To: asOf}
	totals := map[string]decimal.Decimal{}
	for _, tx := range pf.txs {
		if !filter.Match(tx) {
			continue
		}
		name := core.UncategorizedLabel
		if tx.CategoryID != nil {
			if n, ok := names[*tx.CategoryID]; ok {
				name = n
			}
		}
		r, err := rates.Rate(ctx, tx.CurrencyOriginal, pf.base, tx.Date)
		if err != nil {
			return nil, fmt.Errorf("convert expense %s: %w", tx.ID, err)
		}
		totals[name] = totals[name].Add(r.Convert(tx.AmountOriginal))
	}

	out := make([]core.CategoryTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, core.CategoryTotal{Category: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// InvalidateUser drops cached series points of userID. Call after any write that
// changes the user's history.
func (s *SummaryService) InvalidateUser(userID string) {
	if s.series == nil {
		return
	}
	s.series.DeletePrefix(userID + "|")
}

// InvalidateAll drops every cached series point. Call after stored rates changed.
func (s *SummaryService) InvalidateAll() {
	if s.series == nil {
		return
	}
	s.series.DeletePrefix("")
}
