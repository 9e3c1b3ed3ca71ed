package valuation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/fx"
	"finboard/internal/market"
	"finboard/internal/providers"
	"finboard/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(typ core.TransactionType, amount string, d core.Date) core.Transaction {
	return core.Transaction{AccountID: "a1", Type: typ, AmountOriginal: dec(amount), CurrencyOriginal: "USD", Date: d}
}

func TestBalance(t *testing.T) {
	jan := core.NewDate(2025, 1, 1)
	cases := []struct {
		name string
		txs  []core.Transaction
		want string
	}{
		{"empty", nil, "0"},
		{"income minus expense", []core.Transaction{tx(core.Income, "100", jan), tx(core.Expense, "30", jan)}, "70"},
		{"transfer has no effect", []core.Transaction{tx(core.Income, "100", jan), tx(core.Transfer, "50", jan)}, "100"},
		{"overdrawn", []core.Transaction{tx(core.Expense, "12.5", jan)}, "-12.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Balance(tc.txs); !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestBalanceAsOf(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "100", core.NewDate(2025, 1, 1)),
		tx(core.Expense, "30", core.NewDate(2025, 1, 5)),
		tx(core.Expense, "20", core.NewDate(2025, 1, 9)),
	}
	cases := map[core.Date]string{
		core.NewDate(2024, 12, 31): "0",
		core.NewDate(2025, 1, 1):   "100",
		core.NewDate(2025, 1, 5):   "70",
		core.NewDate(2025, 2, 1):   "50",
	}
	for d, want := range cases {
		if got := BalanceAsOf(txs, d); !got.Equal(dec(want)) {
			t.Fatalf("%s expected %s, got %s", d, want, got)
		}
	}
}

func TestCalculatorBalance(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_ = store.CreateAccount(ctx, core.Account{ID: "a1", UserID: "u1"})
	_ = store.CreateAccount(ctx, core.Account{ID: "a2", UserID: "u1"})
	for i, it := range []core.Transaction{
		{ID: "1", UserID: "u1", AccountID: "a1", Type: core.Income, AmountOriginal: dec("100"), Date: core.NewDate(2025, 1, 1)},
		{ID: "2", UserID: "u1", AccountID: "a1", Type: core.Expense, AmountOriginal: dec("30"), Date: core.NewDate(2025, 1, 2)},
		{ID: "3", UserID: "u1", AccountID: "a2", Type: core.Income, AmountOriginal: dec("999"), Date: core.NewDate(2025, 1, 2)},
	} {
		if err := store.CreateTransaction(ctx, it); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	got, err := NewCalculator(store).Balance(ctx, "u1", "a1")
	if err != nil || !got.Equal(dec("70")) {
		t.Fatalf("expected 70, got %s (err=%v)", got, err)
	}
}

func TestHoldingValue(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	asOf := core.NewDate(2025, 3, 10)
	_ = store.UpsertPrice(ctx, core.Price{Symbol: "ACME", Exchange: "US", AsOf: asOf.AddDays(-2), Price: dec("18.5"), CurrencyCode: "USD"})
	v := NewHoldingValuator(market.NewLookup(store, nil))

	h := core.Holding{Symbol: "ACME", Exchange: "US", Quantity: dec("10"), CurrencyCode: "KRW"}
	got, err := v.Value(ctx, h, asOf)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if !got.Priced || !got.Amount.Equal(dec("185")) || got.Currency != "USD" {
		t.Fatalf("expected 185 USD from the price currency, got %+v", got)
	}

	h.Symbol = "NOPE"
	got, err = v.Value(ctx, h, asOf)
	if err != nil {
		t.Fatalf("unpriced holding must not error: %v", err)
	}
	if got.Priced || !got.Amount.IsZero() || got.Currency != "KRW" {
		t.Fatalf("expected zero contribution in holding currency, got %+v", got)
	}
}

func TestAggregateKeepsFirstSeenOrder(t *testing.T) {
	got := Aggregate([]Item{
		{Currency: "KRW", Amount: dec("1000")},
		{Currency: "usd", Amount: dec("5")},
		{Currency: "KRW", Amount: dec("-200")},
		{Currency: "USD", Amount: dec("2.5")},
	})
	if len(got) != 2 || got[0].Currency != "KRW" || got[1].Currency != "USD" {
		t.Fatalf("unexpected buckets %+v", got)
	}
	if !got[0].Total.Equal(dec("800")) || !got[1].Total.Equal(dec("7.5")) {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestToDisplay(t *testing.T) {
	ctx := context.Background()
	asOf := core.NewDate(2025, 3, 10)
	book := fx.NewResolver(memory.New(), providers.NewStaticProvider(), nil).Book()

	totals := []core.CurrencyTotal{{Currency: "KRW", Total: dec("1000000")}}
	got, err := ToDisplay(ctx, book, totals, []string{"USD", "KRW", "JPY"}, asOf)
	if err != nil {
		t.Fatalf("to display: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected three display totals, got %+v", got)
	}
	if usd := got[0].Total.RoundBank(2); !usd.Equal(dec("769.23")) {
		t.Fatalf("expected 769.23 USD, got %s", got[0].Total)
	}
	if !got[1].Total.Equal(dec("1000000")) || !got[2].Total.Equal(dec("100000")) {
		t.Fatalf("unexpected KRW/JPY totals %+v", got)
	}
}

func TestToDisplayIsLinear(t *testing.T) {
	ctx := context.Background()
	asOf := core.NewDate(2025, 3, 10)
	book := fx.NewResolver(memory.New(), providers.NewStaticProvider(), nil).Book()
	display := []string{"USD", "EUR", "KRW"}
	totals := []core.CurrencyTotal{
		{Currency: "KRW", Total: dec("1234567")},
		{Currency: "USD", Total: dec("-42.17")},
		{Currency: "JPY", Total: dec("98000")},
	}

	for _, k := range []string{"0", "2", "-1", "0.37", "1000"} {
		scale := dec(k)
		scaled := make([]core.CurrencyTotal, len(totals))
		for i, b := range totals {
			scaled[i] = core.CurrencyTotal{Currency: b.Currency, Total: b.Total.Mul(scale)}
		}
		base, err := ToDisplay(ctx, book, totals, display, asOf)
		if err != nil {
			t.Fatalf("to display: %v", err)
		}
		got, err := ToDisplay(ctx, book, scaled, display, asOf)
		if err != nil {
			t.Fatalf("to display scaled: %v", err)
		}
		for i := range display {
			if want := base[i].Total.Mul(scale); !got[i].Total.Equal(want) {
				t.Fatalf("k=%s %s: expected %s, got %s", k, display[i], want, got[i].Total)
			}
		}
	}
}
