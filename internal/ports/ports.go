// Package ports declares the storage capabilities the valuation pipeline and the API
// depend on. Implementations live in internal/storage (SQLite) and
// internal/storage/memory.
//
// Every method is scoped by user where the entity is user-owned. Lookups by id return
// core.ErrNotFound when the entity does not exist for that user; unique-key violations
// return core.ErrConflict.
package ports

import (
	"context"

	"finboard/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
type TransactionFilter struct {
	AccountID string
	Type      core.TransactionType
	From      core.Date // inclusive
	To        core.Date // inclusive
}

// Match reports whether tx passes the filter.
func (f TransactionFilter) Match(tx core.Transaction) bool {
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if !f.From.IsEmpty() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsEmpty() && tx.Date.After(f.To) {
		return false
	}
	return true
}

type AccountStore interface {
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	GetAccount(ctx context.Context, userID, id string) (core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) error
	UpdateAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, userID, id string) error
}

// TransactionStore lists transactions ordered by date ascending.
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
}

type HoldingStore interface {
	ListHoldings(ctx context.Context, userID string) ([]core.Holding, error)
	GetHolding(ctx context.Context, userID, id string) (core.Holding, error)
	CreateHolding(ctx context.Context, h core.Holding) error
	UpdateHolding(ctx context.Context, h core.Holding) error
	DeleteHolding(ctx context.Context, userID, id string) error
}

// PriceStore keeps at most one price per (symbol, exchange, day).
type PriceStore interface {
	// LatestPrice returns the most recent price dated on or before asOf.
	LatestPrice(ctx context.Context, symbol, exchange string, asOf core.Date) (core.Price, bool, error)
	UpsertPrice(ctx context.Context, p core.Price) error
}

// FxRateStore keeps at most one rate per (date, base, quote).
type FxRateStore interface {
	GetFxRate(ctx context.Context, base, quote string, date core.Date) (core.FxRate, bool, error)
	UpsertFxRate(ctx context.Context, r core.FxRate) error
	ListFxRates(ctx context.Context, date core.Date) ([]core.FxRate, error)
}

type CurrencyStore interface {
	ListCurrencies(ctx context.Context) ([]core.Currency, error)
	UpsertCurrency(ctx context.Context, c core.Currency) error
}

type SettingsStore interface {
	// GetSettings returns core.ErrSettingsNotFound when the user has none.
	GetSettings(ctx context.Context, userID string) (core.Setting, error)
	PutSettings(ctx context.Context, s core.Setting) error
}

// CategoryStore deletes categories without touching history: referencing transactions
// lose their category.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) error
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

type TaskStore interface {
	ListTasks(ctx context.Context, userID string) ([]core.Task, error)
	GetTask(ctx context.Context, userID, id string) (core.Task, error)
	CreateTask(ctx context.Context, t core.Task) error
	UpdateTask(ctx context.Context, t core.Task) error
	DeleteTask(ctx context.Context, userID, id string) error
}

// Store is the full entity store.
type Store interface {
	AccountStore
	TransactionStore
	HoldingStore
	PriceStore
	FxRateStore
	CurrencyStore
	SettingsStore
	CategoryStore
	TaskStore
	Ping(ctx context.Context) error
	Close() error
}
