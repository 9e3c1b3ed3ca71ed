// Package memory is an in-process ports.Store used by tests and DATA_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"finboard/internal/core"
	"finboard/internal/ports"
)

var _ ports.Store = (*Store)(nil)

// DefaultCurrencies are the currencies known to a fresh store.
var DefaultCurrencies = []core.Currency{
	{Code: "KRW", Name: "South Korean Won", Decimals: 0},
	{Code: "JPY", Name: "Japanese Yen", Decimals: 0},
	{Code: "USD", Name: "US Dollar", Decimals: 2},
	{Code: "EUR", Name: "Euro", Decimals: 2},
	{Code: "CNY", Name: "Chinese Yuan", Decimals: 2},
}

type priceKey struct {
	symbol, exchange string
}

type rateKey struct {
	date        string
	base, quote string
}

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]core.Account
	transactions map[string]core.Transaction
	holdings     map[string]core.Holding
	categories   map[string]core.Category
	tasks        map[string]core.Task
	settings     map[string]core.Setting
	currencies   map[string]core.Currency
	prices       map[priceKey]map[string]core.Price
	rates        map[rateKey]core.FxRate
}

func New() *Store {
	s := &Store{
		accounts:     map[string]core.Account{},
		transactions: map[string]core.Transaction{},
		holdings:     map[string]core.Holding{},
		categories:   map[string]core.Category{},
		tasks:        map[string]core.Task{},
		settings:     map[string]core.Setting{},
		currencies:   map[string]core.Currency{},
		prices:       map[priceKey]map[string]core.Price{},
		rates:        map[rateKey]core.FxRate{},
	}
	for _, c := range DefaultCurrencies {
		s.currencies[c.Code] = c
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// Accounts

func (s *Store) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, userID, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return core.Account{}, notFound("account", id)
	}
	return a, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, core.ErrConflict)
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.accounts[a.ID]
	if !ok || old.UserID != a.UserID {
		return notFound("account", a.ID)
	}
	a.CreatedAt = old.CreatedAt
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return notFound("account", id)
	}
	delete(s.accounts, id)
	for txID, tx := range s.transactions {
		if tx.AccountID == id {
			delete(s.transactions, txID)
		}
	}
	return nil
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, userID string, f ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && f.Match(tx) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return core.Transaction{}, notFound("transaction", id)
	}
	return cloneTransaction(tx), nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrConflict)
	}
	if a, ok := s.accounts[tx.AccountID]; !ok || a.UserID != tx.UserID {
		return notFound("account", tx.AccountID)
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.transactions[tx.ID]
	if !ok || old.UserID != tx.UserID {
		return notFound("transaction", tx.ID)
	}
	tx.CreatedAt = old.CreatedAt
	s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return notFound("transaction", id)
	}
	delete(s.transactions, id)
	return nil
}

func cloneTransaction(tx core.Transaction) core.Transaction {
	if tx.CategoryID != nil {
		id := *tx.CategoryID
		tx.CategoryID = &id
	}
	tx.Tags = append([]string(nil), tx.Tags...)
	return tx
}

// Holdings

func (s *Store) ListHoldings(_ context.Context, userID string) ([]core.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Holding
	for _, h := range s.holdings {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Exchange < out[j].Exchange
	})
	return out, nil
}

func (s *Store) GetHolding(_ context.Context, userID, id string) (core.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[id]
	if !ok || h.UserID != userID {
		return core.Holding{}, notFound("holding", id)
	}
	return h, nil
}

func (s *Store) CreateHolding(_ context.Context, h core.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holdings[h.ID]; ok || s.holdingTaken(h) {
		return fmt.Errorf("holding %s.%s: %w", h.Symbol, h.Exchange, core.ErrConflict)
	}
	s.holdings[h.ID] = h
	return nil
}

func (s *Store) UpdateHolding(_ context.Context, h core.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.holdings[h.ID]
	if !ok || old.UserID != h.UserID {
		return notFound("holding", h.ID)
	}
	if s.holdingTaken(h) {
		return fmt.Errorf("holding %s.%s: %w", h.Symbol, h.Exchange, core.ErrConflict)
	}
	s.holdings[h.ID] = h
	return nil
}

// holdingTaken reports whether another holding of the user has the same instrument.
func (s *Store) holdingTaken(h core.Holding) bool {
	for id, other := range s.holdings {
		if id != h.ID && other.UserID == h.UserID && other.Symbol == h.Symbol && other.Exchange == h.Exchange {
			return true
		}
	}
	return false
}

func (s *Store) DeleteHolding(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holdings[id]
	if !ok || h.UserID != userID {
		return notFound("holding", id)
	}
	delete(s.holdings, id)
	return nil
}

// Prices

func (s *Store) LatestPrice(_ context.Context, symbol, exchange string, asOf core.Date) (core.Price, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  core.Price
		found bool
	)
	for _, p := range s.prices[priceKey{symbol, exchange}] {
		if p.AsOf.After(asOf) {
			continue
		}
		if !found || p.AsOf.After(best.AsOf) {
			best, found = p, true
		}
	}
	return best, found, nil
}

func (s *Store) UpsertPrice(_ context.Context, p core.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := priceKey{p.Symbol, p.Exchange}
	if s.prices[k] == nil {
		s.prices[k] = map[string]core.Price{}
	}
	s.prices[k][p.AsOf.String()] = p
	return nil
}

// FX rates

func (s *Store) GetFxRate(_ context.Context, base, quote string, date core.Date) (core.FxRate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[rateKey{date.String(), base, quote}]
	return r, ok, nil
}

func (s *Store) UpsertFxRate(_ context.Context, r core.FxRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rateKey{r.Date.String(), r.BaseCode, r.QuoteCode}] = r
	return nil
}

func (s *Store) ListFxRates(_ context.Context, date core.Date) ([]core.FxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FxRate
	for k, r := range s.rates {
		if k.date == date.String() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BaseCode != out[j].BaseCode {
			return out[i].BaseCode < out[j].BaseCode
		}
		return out[i].QuoteCode < out[j].QuoteCode
	})
	return out, nil
}

func (s *Store) ListCurrencies(context.Context) ([]core.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) UpsertCurrency(_ context.Context, c core.Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currencies[c.Code] = c
	return nil
}

// Settings

func (s *Store) GetSettings(_ context.Context, userID string) (core.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[userID]
	if !ok {
		return core.Setting{}, core.ErrSettingsNotFound
	}
	st.DisplayCurrencies = append([]string(nil), st.DisplayCurrencies...)
	return st, nil
}

func (s *Store) PutSettings(_ context.Context, st core.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.DisplayCurrencies = append([]string(nil), st.DisplayCurrencies...)
	s.settings[st.UserID] = st
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, notFound("category", id)
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok || s.categoryTaken(c) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok || old.UserID != c.UserID {
		return notFound("category", c.ID)
	}
	if s.categoryTaken(c) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) categoryTaken(c core.Category) bool {
	for id, other := range s.categories {
		if id != c.ID && other.UserID == c.UserID && strings.EqualFold(other.Name, c.Name) {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return notFound("category", id)
	}
	delete(s.categories, id)
	for txID, tx := range s.transactions {
		if tx.CategoryID != nil && *tx.CategoryID == id {
			tx.CategoryID = nil
			s.transactions[txID] = tx
		}
	}
	return nil
}

// Tasks

func (s *Store) ListTasks(_ context.Context, userID string) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Status == core.TaskDone) != (b.Status == core.TaskDone) {
			return b.Status == core.TaskDone
		}
		if a.DueDate.IsEmpty() != b.DueDate.IsEmpty() {
			return b.DueDate.IsEmpty()
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTask(_ context.Context, userID, id string) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return core.Task{}, notFound("task", id)
	}
	return t, nil
}

func (s *Store) CreateTask(_ context.Context, t core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, core.ErrConflict)
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) UpdateTask(_ context.Context, t core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tasks[t.ID]
	if !ok || old.UserID != t.UserID {
		return notFound("task", t.ID)
	}
	t.CreatedAt = old.CreatedAt
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return notFound("task", id)
	}
	delete(s.tasks, id)
	return nil
}
