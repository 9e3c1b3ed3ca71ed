package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/fx"
	"finboard/internal/market"
	"finboard/internal/providers"
	"finboard/internal/storage/memory"
)

var fixedNow = time.Date(2025, 5, 15, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

type fixture struct {
	store   *memory.Store
	series  *cache.LRUCache[decimal.Decimal]
	service *SummaryService
}

func newFixture(t *testing.T, provider providers.Provider) *fixture {
	t.Helper()
	store := memory.New()
	resolver := fx.NewResolver(store, provider, nil)
	lookup := market.NewLookup(store, provider, market.WithClock(clock))
	series := cache.NewLRUCache[decimal.Decimal](1000, time.Hour)
	svc := NewSummaryService(store, resolver, lookup, series, SummaryConfig{}).WithClock(clock)
	return &fixture{store: store, series: series, service: svc}
}

func (f *fixture) mustSettings(t *testing.T, base string, display ...string) {
	t.Helper()
	err := f.store.PutSettings(context.Background(), core.Setting{
		UserID:            "u1",
		BaseCurrency:      base,
		DisplayCurrencies: display,
		RoundingRule:      core.RoundBankers,
	})
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
}

func (f *fixture) mustAccount(t *testing.T, id, currency string) {
	t.Helper()
	a := core.Account{ID: id, UserID: "u1", Name: id, CurrencyCode: currency, Type: core.AccountBank, CreatedAt: fixedNow}
	if err := f.store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func (f *fixture) mustTx(t *testing.T, id, account string, typ core.TransactionType, amount, currency string, day core.Date, category *string) {
	t.Helper()
	tx := core.Transaction{
		ID:               id,
		UserID:           "u1",
		AccountID:        account,
		CategoryID:       category,
		Type:             typ,
		AmountOriginal:   dec(amount),
		CurrencyOriginal: currency,
		Date:             day,
		CreatedAt:        fixedNow,
	}
	if err := f.store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
}

func totalFor(totals []core.CurrencyTotal, code string) (decimal.Decimal, bool) {
	for _, ct := range totals {
		if ct.Currency == code {
			return ct.Total, true
		}
	}
	return decimal.Zero, false
}

func TestSummarize_KRWToUSD(t *testing.T) {
	f := newFixture(t, providers.NewStaticProvider())
	f.mustSettings(t, "KRW", "USD")
	f.mustAccount(t, "a1", "KRW")
	f.mustTx(t, "t1", "a1", core.Income, "1000000", "KRW", core.NewDate(2025, 5, 1), nil)

	s, err := f.service.Summarize(context.Background(), "u1", core.Date{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.AsOf.Equal(core.NewDate(2025, 5, 15)) {
		t.Errorf("expected asOf today, got %s", s.AsOf)
	}
	if !s.TotalNetWorthBase.Equal(dec("1000000")) {
		t.Errorf("expected net worth 1000000, got %s", s.TotalNetWorthBase)
	}
	usd, ok := totalFor(s.ByCurrency, "USD")
	if !ok {
		t.Fatalf("missing USD bucket in %+v", s.ByCurrency)
	}
	if got := core.RoundMoney(usd, "USD", s.RoundingRule); got.String() != "769.23" {
		t.Errorf("expected 769.23 USD, got %s", got)
	}
	if len(s.FallbackRates) != 0 {
		t.Errorf("unexpected fallback rates %v", s.FallbackRates)
	}
}

func TestSummarize_Portfolio(t *testing.T) {
	f := newFixture(t, providers.NewStaticProvider())
	ctx := context.Background()
	f.mustSettings(t, "KRW", "USD", "JPY", "KRW")
	f.mustAccount(t, "a1", "KRW")
	f.mustAccount(t, "a2", "USD")
	if err := f.store.CreateCategory(ctx, core.Category{ID: "c1", UserID: "u1", Name: "Food", Type: core.Expense}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := f.store.CreateHolding(ctx, core.Holding{ID: "h1", UserID: "u1", Symbol: "AAPL", Exchange: "NASDAQ", Quantity: dec("10"), CurrencyCode: "USD"}); err != nil {
		t.Fatalf("create holding: %v", err)
	}
	f.mustTx(t, "t1", "a1", core.Income, "1000000", "KRW", core.NewDate(2025, 5, 1), nil)
	f.mustTx(t, "t2", "a1", core.Expense, "50000", "KRW", core.NewDate(2025, 5, 10), strPtr("c1"))
	f.mustTx(t, "t3", "a1", core.Expense, "20000", "KRW", core.NewDate(2025, 4, 20), strPtr("c1"))
	f.mustTx(t, "t4", "a1", core.Expense, "5000", "KRW", core.NewDate(2025, 5, 12), nil)
	f.mustTx(t, "t5", "a2", core.Income, "100", "USD", core.NewDate(2025, 5, 2), nil)

	s, err := f.service.Summarize(ctx, "u1", core.NewDate(2025, 5, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 925000 KRW + 100 USD + 10 AAPL at 190 USD, at 1300 KRW per USD.
	if !s.TotalNetWorthBase.Equal(dec("3525000")) {
		t.Errorf("expected net worth 3525000, got %s", s.TotalNetWorthBase)
	}

	want := map[string]string{"USD": "2711.54", "JPY": "352500", "KRW": "3525000"}
	for code, w := range want {
		got, ok := totalFor(s.ByCurrency, code)
		if !ok {
			t.Fatalf("missing %s bucket", code)
		}
		if r := core.RoundMoney(got, code, core.RoundBankers); r.String() != w {
			t.Errorf("%s: expected %s, got %s", code, w, r)
		}
	}
	if s.ByCurrency[0].Currency != "USD" || s.ByCurrency[2].Currency != "KRW" {
		t.Errorf("display order not kept: %+v", s.ByCurrency)
	}

	t.Run("category breakdown is month bounded", func(t *testing.T) {
		if len(s.CategoryBreakdown) != 2 {
			t.Fatalf("expected 2 categories, got %+v", s.CategoryBreakdown)
		}
		if s.CategoryBreakdown[0].Category != "Food" || !s.CategoryBreakdown[0].Total.Equal(dec("50000")) {
			t.Errorf("unexpected first category %+v", s.CategoryBreakdown[0])
		}
		if s.CategoryBreakdown[1].Category != core.UncategorizedLabel || !s.CategoryBreakdown[1].Total.Equal(dec("5000")) {
			t.Errorf("unexpected second category %+v", s.CategoryBreakdown[1])
		}
	})

	t.Run("series covers thirty days", func(t *testing.T) {
		if len(s.Last30DaysSeries) != core.SeriesDays {
			t.Fatalf("expected %d points, got %d", core.SeriesDays, len(s.Last30DaysSeries))
		}
		first, last := s.Last30DaysSeries[0], s.Last30DaysSeries[core.SeriesDays-1]
		if !first.Date.Equal(core.NewDate(2025, 4, 16)) || !last.Date.Equal(s.AsOf) {
			t.Errorf("unexpected series bounds %s..%s", first.Date, last.Date)
		}
		if !first.Value.IsZero() {
			t.Errorf("expected empty first point, got %s", first.Value)
		}
		points := map[string]string{
			"2025-04-20": "-20000",
			"2025-05-01": "980000",
			// Holding has no price stored before today.
			"2025-05-14": "1055000",
			"2025-05-15": "3525000",
		}
		for _, p := range s.Last30DaysSeries {
			if w, ok := points[p.Date.String()]; ok && !p.Value.Equal(dec(w)) {
				t.Errorf("%s: expected %s, got %s", p.Date, w, p.Value)
			}
		}
	})

	t.Run("past points are cached until invalidated", func(t *testing.T) {
		if got := f.series.Size(); got != core.SeriesDays-1 {
			t.Errorf("expected %d cached points, got %d", core.SeriesDays-1, got)
		}
		f.service.InvalidateUser("u1")
		if got := f.series.Size(); got != 0 {
			t.Errorf("expected empty cache after invalidation, got %d", got)
		}
	})
}

func TestSummarize_CachedPointsServeRepeatRequests(t *testing.T) {
	f := newFixture(t, providers.NewStaticProvider())
	f.mustSettings(t, "KRW")
	f.mustAccount(t, "a1", "KRW")
	f.mustTx(t, "t1", "a1", core.Income, "1000", "KRW", core.NewDate(2025, 5, 1), nil)
	ctx := context.Background()

	if _, err := f.service.Summarize(ctx, "u1", core.Date{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Written behind the service's back, so nothing invalidates the cache.
	f.mustTx(t, "t2", "a1", core.Income, "500", "KRW", core.NewDate(2025, 5, 3), nil)

	pointAt := func(s core.Summary, d string) decimal.Decimal {
		for _, p := range s.Last30DaysSeries {
			if p.Date.String() == d {
				return p.Value
			}
		}
		t.Fatalf("no point for %s", d)
		return decimal.Zero
	}

	s, _ := f.service.Summarize(ctx, "u1", core.Date{})
	if got := pointAt(s, "2025-05-10"); !got.Equal(dec("1000")) {
		t.Errorf("expected cached 1000, got %s", got)
	}
	if got := pointAt(s, "2025-05-15"); !got.Equal(dec("1500")) {
		t.Errorf("today is never cached: expected 1500, got %s", got)
	}

	f.service.InvalidateUser("u1")
	s, _ = f.service.Summarize(ctx, "u1", core.Date{})
	if got := pointAt(s, "2025-05-10"); !got.Equal(dec("1500")) {
		t.Errorf("expected recomputed 1500, got %s", got)
	}
}

func TestSummarize_FallbackPointsAreNotCached(t *testing.T) {
	f := newFixture(t, providers.NewEmptyStaticProvider())
	f.mustSettings(t, "KRW")
	f.mustAccount(t, "a1", "USD")
	f.mustTx(t, "t1", "a1", core.Income, "100", "USD", core.NewDate(2025, 5, 1), nil)
	ctx := context.Background()

	contains := func(list []string, want string) bool {
		for _, v := range list {
			if v == want {
				return true
			}
		}
		return false
	}

	first, err := f.service.Summarize(ctx, "u1", core.Date{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(first.FallbackRates, "USD/KRW@2025-05-14") {
		t.Fatalf("expected fallback for 2025-05-14, got %v", first.FallbackRates)
	}
	cachedBefore := f.series.Size()

	err = f.store.UpsertFxRate(ctx, core.FxRate{Date: core.NewDate(2025, 5, 14), BaseCode: "USD", QuoteCode: "KRW", Rate: dec("1300"), Source: "test"})
	if err != nil {
		t.Fatalf("upsert rate: %v", err)
	}

	second, err := f.service.Summarize(ctx, "u1", core.Date{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	point := second.Last30DaysSeries[core.SeriesDays-2]
	if point.Date.String() != "2025-05-14" {
		t.Fatalf("unexpected point date %s", point.Date)
	}
	if !point.Value.Equal(dec("130000")) {
		t.Errorf("expected 130000 with the stored rate, got %s", point.Value)
	}
	if contains(second.FallbackRates, "USD/KRW@2025-05-14") {
		t.Errorf("2025-05-14 has a real rate now, got %v", second.FallbackRates)
	}
	if !contains(second.FallbackRates, "USD/KRW@2025-05-13") {
		t.Errorf("expected 2025-05-13 still reported as fallback, got %v", second.FallbackRates)
	}
	if got := f.series.Size() - cachedBefore; got != 1 {
		t.Errorf("expected only the exact point to be cached, got %d new entries", got)
	}
}

func TestSummaryService_InvalidateAll(t *testing.T) {
	f := newFixture(t, providers.NewStaticProvider())
	f.mustSettings(t, "KRW")
	f.mustAccount(t, "a1", "KRW")
	f.mustTx(t, "t1", "a1", core.Income, "1000", "KRW", core.NewDate(2025, 5, 1), nil)
	f.series.Set(seriesKey("u2", core.NewDate(2025, 5, 1)), dec("1"))

	if _, err := f.service.Summarize(context.Background(), "u1", core.Date{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.series.Size() == 0 {
		t.Fatal("expected cached points")
	}
	f.service.InvalidateAll()
	if got := f.series.Size(); got != 0 {
		t.Errorf("expected empty cache, got %d", got)
	}
}

func TestSummarize_MissingSettings(t *testing.T) {
	f := newFixture(t, providers.NewStaticProvider())
	_, err := f.service.Summarize(context.Background(), "u1", core.Date{})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSummarize_FallbackRateIsReported(t *testing.T) {
	f := newFixture(t, providers.NewEmptyStaticProvider())
	f.mustSettings(t, "KRW", "USD")
	f.mustAccount(t, "a1", "KRW")
	f.mustTx(t, "t1", "a1", core.Income, "1000000", "KRW", core.NewDate(2025, 5, 1), nil)

	s, err := f.service.Summarize(context.Background(), "u1", core.Date{})
	if err != nil {
		t.Fatalf("fallback must not fail the summary: %v", err)
	}
	usd, _ := totalFor(s.ByCurrency, "USD")
	if !usd.Equal(dec("1000000")) {
		t.Errorf("expected rate 1 approximation, got %s", usd)
	}
	if len(s.FallbackRates) == 0 {
		t.Error("expected fallback rates to be reported")
	}
}

func TestSummarize_UnpricedHolding(t *testing.T) {
	p := providers.NewEmptyStaticProvider()
	f := newFixture(t, p)
	f.mustSettings(t, "USD")
	if err := f.store.CreateHolding(context.Background(), core.Holding{ID: "h1", UserID: "u1", Symbol: "XYZ", Exchange: "KRX", Quantity: dec("3"), CurrencyCode: "KRW"}); err != nil {
		t.Fatalf("create holding: %v", err)
	}

	s, err := f.service.Summarize(context.Background(), "u1", core.Date{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.TotalNetWorthBase.IsZero() {
		t.Errorf("unpriced holding must contribute zero, got %s", s.TotalNetWorthBase)
	}
	if len(s.Unpriced) != 1 || s.Unpriced[0] != "XYZ.KRX" {
		t.Errorf("unexpected unpriced list %v", s.Unpriced)
	}
}

type failingStore struct {
	*memory.Store
}

var errBoom = errors.New("boom")

func (failingStore) ListHoldings(context.Context, string) ([]core.Holding, error) {
	return nil, errBoom
}

func TestSummarize_StoreFailureAborts(t *testing.T) {
	store := failingStore{memory.New()}
	_ = store.PutSettings(context.Background(), core.Setting{UserID: "u1", BaseCurrency: "USD"})
	provider := providers.NewStaticProvider()
	svc := NewSummaryService(store, fx.NewResolver(store, provider, nil), market.NewLookup(store, provider), nil, SummaryConfig{Concurrency: 2})

	s, err := svc.Summarize(context.Background(), "u1", core.Date{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if s.UserID != "" {
		t.Errorf("expected no partial summary, got %+v", s)
	}
}
