package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/ports"
)

func TestDeleteCategoryDetachesTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateAccount(ctx, core.Account{ID: "a1", UserID: "u1", Name: "Cash", CurrencyCode: "KRW", Type: core.AccountCash}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := s.CreateCategory(ctx, core.Category{ID: "c1", UserID: "u1", Name: "Food", Type: core.Expense}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	cat := "c1"
	tx := core.Transaction{ID: "t1", UserID: "u1", AccountID: "a1", CategoryID: &cat, Type: core.Expense,
		AmountOriginal: decimal.NewFromInt(5), CurrencyOriginal: "KRW", Date: core.NewDate(2025, 1, 1)}
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := s.DeleteCategory(ctx, "u1", "c1"); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	got, err := s.GetTransaction(ctx, "u1", "t1")
	if err != nil || got.CategoryID != nil {
		t.Fatalf("expected detached transaction, got %+v (err=%v)", got, err)
	}
}

func TestTransactionRequiresOwnedAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, core.Account{ID: "a1", UserID: "u1", Name: "Cash", CurrencyCode: "KRW", Type: core.AccountCash})
	err := s.CreateTransaction(ctx, core.Transaction{ID: "t1", UserID: "u2", AccountID: "a1", Type: core.Income})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign account, got %v", err)
	}
}

func TestListTransactionsFilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, core.Account{ID: "a1", UserID: "u1"})
	for i, d := range []core.Date{core.NewDate(2025, 3, 5), core.NewDate(2025, 1, 5), core.NewDate(2025, 2, 5)} {
		tx := core.Transaction{ID: string(rune('a' + i)), UserID: "u1", AccountID: "a1", Type: core.Expense, Date: d}
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, _ := s.ListTransactions(ctx, "u1", ports.TransactionFilter{To: core.NewDate(2025, 2, 28)})
	if len(got) != 2 || got[0].Date.Month() != 1 || got[1].Date.Month() != 2 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestHoldingInstrumentUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	h := core.Holding{ID: "h1", UserID: "u1", Symbol: "AAPL", Exchange: "US"}
	if err := s.CreateHolding(ctx, h); err != nil {
		t.Fatalf("create: %v", err)
	}
	h.ID = "h2"
	if err := s.CreateHolding(ctx, h); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSettingsMissing(t *testing.T) {
	if _, err := New().GetSettings(context.Background(), "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
