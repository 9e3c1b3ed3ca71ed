package fx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/ports"
	"finboard/internal/providers"
	"finboard/internal/storage/memory"
)

var day = core.NewDate(2025, 4, 1)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type countingProvider struct {
	calls atomic.Int32
	rate  decimal.Decimal
	err   error
}

func (p *countingProvider) FetchRate(context.Context, string, string, core.Date) (decimal.Decimal, error) {
	p.calls.Add(1)
	return p.rate, p.err
}

type brokenRates struct {
	ports.FxRateStore
}

func (brokenRates) GetFxRate(context.Context, string, string, core.Date) (core.FxRate, bool, error) {
	return core.FxRate{}, false, errors.New("disk on fire")
}

func TestSelfPairIsExactlyOne(t *testing.T) {
	p := &countingProvider{rate: dec("3")}
	r := NewResolver(brokenRates{}, p, nil)
	for _, code := range []string{"KRW", "USD", "jpy", "EUR"} {
		rate, err := r.Rate(context.Background(), code, code, day)
		if err != nil {
			t.Fatalf("%s: %v", code, err)
		}
		if !rate.Value.Equal(decimal.NewFromInt(1)) || rate.Fallback {
			t.Fatalf("%s: expected exact 1, got %s fallback=%v", code, rate.Value, rate.Fallback)
		}
	}
	if p.calls.Load() != 0 {
		t.Fatalf("self pairs must not hit the provider")
	}
}

func TestStoredRateWins(t *testing.T) {
	store := memory.New()
	_ = store.UpsertFxRate(context.Background(), core.FxRate{Date: day, BaseCode: "USD", QuoteCode: "KRW", Rate: dec("1350"), Source: "manual"})
	p := &countingProvider{rate: dec("1")}
	rate, err := NewResolver(store, p, nil).Rate(context.Background(), "usd", "krw", day)
	if err != nil || !rate.Value.Equal(dec("1350")) || rate.Fallback {
		t.Fatalf("expected stored 1350, got %+v (err=%v)", rate, err)
	}
	if p.calls.Load() != 0 {
		t.Fatalf("provider should not be called on a hit")
	}
}

func TestProviderRateIsStored(t *testing.T) {
	store := memory.New()
	r := NewResolver(store, providers.NewStaticProvider(), nil)
	rate, err := r.Rate(context.Background(), "USD", "KRW", day)
	if err != nil || !rate.Value.Equal(dec("1300")) || rate.Fallback {
		t.Fatalf("expected 1300 from provider, got %+v (err=%v)", rate, err)
	}
	stored, ok, _ := store.GetFxRate(context.Background(), "USD", "KRW", day)
	if !ok || !stored.Rate.Equal(dec("1300")) || stored.Source != "static" {
		t.Fatalf("expected fetched rate to be stored, got %+v ok=%v", stored, ok)
	}
}

func TestMissingRateFallsBackToOne(t *testing.T) {
	cases := map[string]providers.RateProvider{
		"no provider":     nil,
		"provider failed": &countingProvider{err: core.ErrUpstreamUnavailable},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			rate, err := NewResolver(memory.New(), p, nil).Rate(context.Background(), "XAU", "KRW", day)
			if err != nil {
				t.Fatalf("fallback must not error: %v", err)
			}
			if !rate.Fallback || !rate.Value.Equal(decimal.NewFromInt(1)) {
				t.Fatalf("expected fallback 1, got %+v", rate)
			}
		})
	}
}

func TestCanceledProviderCallIsReturned(t *testing.T) {
	for _, ctxErr := range []error{context.Canceled, context.DeadlineExceeded} {
		t.Run(ctxErr.Error(), func(t *testing.T) {
			store := memory.New()
			p := &countingProvider{err: fmt.Errorf("get forex: %w", ctxErr)}
			rate, err := NewResolver(store, p, nil).Rate(context.Background(), "USD", "KRW", day)
			if !errors.Is(err, ctxErr) {
				t.Fatalf("expected %v, got rate %+v err %v", ctxErr, rate, err)
			}
			if rates, _ := store.ListFxRates(context.Background(), day); len(rates) != 0 {
				t.Fatalf("nothing should be stored, got %v", rates)
			}
		})
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	_, err := NewResolver(brokenRates{}, nil, nil).Rate(context.Background(), "USD", "KRW", day)
	if err == nil {
		t.Fatal("expected store error")
	}
}

func TestBookMemoizesConcurrently(t *testing.T) {
	p := &countingProvider{rate: dec("0.5")}
	book := NewResolver(memory.New(), p, nil).Book()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := book.Rate(context.Background(), "EUR", "USD", day); err != nil {
				t.Errorf("rate: %v", err)
			}
		}()
	}
	wg.Wait()
	if p.calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", p.calls.Load())
	}
}

func TestBookReportsFallbacks(t *testing.T) {
	book := NewResolver(memory.New(), nil, nil).Book()
	ctx := context.Background()
	_, _ = book.Rate(ctx, "KRW", "USD", day)
	_, _ = book.Rate(ctx, "KRW", "KRW", day)
	_, _ = book.Rate(ctx, "JPY", "USD", day)
	got := book.Fallbacks()
	if len(got) != 2 || got[0] != "JPY/USD@2025-04-01" || got[1] != "KRW/USD@2025-04-01" {
		t.Fatalf("unexpected fallbacks %v", got)
	}
}
