package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"finboard/internal/core"
	"finboard/internal/fx"
	"finboard/internal/ports"
)

// Invalidator drops derived data of a user after a write.
type Invalidator interface {
	InvalidateUser(userID string)
}

// LedgerService validates and persists user-owned entities. Every write that can change
// a valuation invalidates the user's cached summary data.
type LedgerService struct {
	store       ports.Store
	rates       fx.RateSource
	invalidator Invalidator
	now         func() time.Time
	newID       func() string
}

func NewLedgerService(store ports.Store, rates fx.RateSource, invalidator Invalidator) *LedgerService {
	return &LedgerService{
		store:       store,
		rates:       rates,
		invalidator: invalidator,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (s *LedgerService) invalidate(userID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
}

// Settings

func (s *LedgerService) Settings(ctx context.Context, userID string) (core.Setting, error) {
	return s.store.GetSettings(ctx, userID)
}

func (s *LedgerService) PutSettings(ctx context.Context, st core.Setting) (core.Setting, error) {
	st.BaseCurrency = core.NormalizeCode(st.BaseCurrency)
	for i, c := range st.DisplayCurrencies {
		st.DisplayCurrencies[i] = core.NormalizeCode(c)
	}
	if st.RoundingRule == "" {
		st.RoundingRule = core.RoundBankers
	}
	if err := st.Validate(); err != nil {
		return core.Setting{}, err
	}
	if err := s.store.PutSettings(ctx, st); err != nil {
		return core.Setting{}, err
	}
	s.invalidate(st.UserID)
	slog.InfoContext(ctx, "Settings saved", "user_id", st.UserID, "base_currency", st.BaseCurrency)
	return st, nil
}

// Accounts

func (s *LedgerService) Accounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.CurrencyCode = core.NormalizeCode(a.CurrencyCode)
	if a.Type == "" {
		a.Type = core.AccountOther
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.ID = s.newID()
	a.CreatedAt = s.now().UTC()
	a.UpdatedAt = a.CreatedAt
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	s.invalidate(a.UserID)
	return a, nil
}

func (s *LedgerService) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	old, err := s.store.GetAccount(ctx, a.UserID, a.ID)
	if err != nil {
		return core.Account{}, err
	}
	a.CurrencyCode = core.NormalizeCode(a.CurrencyCode)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	s.invalidate(a.UserID)
	return a, nil
}

func (s *LedgerService) DeleteAccount(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteAccount(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// Transactions

func (s *LedgerService) Transactions(ctx context.Context, userID string, f ports.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, f)
}

// restate fills AmountBase from AmountOriginal at the rate of the transaction's date
// into the user's current base currency.
func (s *LedgerService) restate(ctx context.Context, tx *core.Transaction) error {
	settings, err := s.store.GetSettings(ctx, tx.UserID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	r, err := s.rates.Rate(ctx, tx.CurrencyOriginal, settings.BaseCurrency, tx.Date)
	if err != nil {
		return err
	}
	if r.Fallback {
		slog.WarnContext(ctx, "Transaction restated at fallback rate",
			"currency", tx.CurrencyOriginal,
			"base_currency", settings.BaseCurrency,
			"date", tx.Date.String())
	}
	tx.AmountBase = r.Convert(tx.AmountOriginal)
	tx.CurrencyBase = core.NormalizeCode(settings.BaseCurrency)
	return nil
}

func (s *LedgerService) prepareTransaction(ctx context.Context, tx *core.Transaction) error {
	tx.CurrencyOriginal = core.NormalizeCode(tx.CurrencyOriginal)
	if tx.CategoryID != nil && strings.TrimSpace(*tx.CategoryID) == "" {
		tx.CategoryID = nil
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	if _, err := s.store.GetAccount(ctx, tx.UserID, tx.AccountID); err != nil {
		return err
	}
	if tx.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, tx.UserID, *tx.CategoryID); err != nil {
			return err
		}
	}
	return s.restate(ctx, tx)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.prepareTransaction(ctx, &tx); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = s.newID()
	tx.CreatedAt = s.now().UTC()
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	s.invalidate(tx.UserID)
	slog.InfoContext(ctx, "Transaction created",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.AmountOriginal.String(),
		"currency", tx.CurrencyOriginal)
	return tx, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, tx.UserID, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.prepareTransaction(ctx, &tx); err != nil {
		return core.Transaction{}, err
	}
	tx.CreatedAt = old.CreatedAt
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	s.invalidate(tx.UserID)
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// Holdings

func (s *LedgerService) Holdings(ctx context.Context, userID string) ([]core.Holding, error) {
	return s.store.ListHoldings(ctx, userID)
}

func normalizeHolding(h *core.Holding) {
	h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
	h.Exchange = strings.ToUpper(strings.TrimSpace(h.Exchange))
	h.CurrencyCode = core.NormalizeCode(h.CurrencyCode)
}

func (s *LedgerService) CreateHolding(ctx context.Context, h core.Holding) (core.Holding, error) {
	normalizeHolding(&h)
	if err := h.Validate(); err != nil {
		return core.Holding{}, err
	}
	h.ID = s.newID()
	if err := s.store.CreateHolding(ctx, h); err != nil {
		return core.Holding{}, err
	}
	s.invalidate(h.UserID)
	return h, nil
}

func (s *LedgerService) UpdateHolding(ctx context.Context, h core.Holding) (core.Holding, error) {
	normalizeHolding(&h)
	if err := h.Validate(); err != nil {
		return core.Holding{}, err
	}
	if err := s.store.UpdateHolding(ctx, h); err != nil {
		return core.Holding{}, err
	}
	s.invalidate(h.UserID)
	return h, nil
}

func (s *LedgerService) DeleteHolding(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteHolding(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// Categories

func (s *LedgerService) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = s.newID()
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// DeleteCategory never fails because of referencing transactions; they become
// uncategorized.
func (s *LedgerService) DeleteCategory(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// Tasks

func (s *LedgerService) Tasks(ctx context.Context, userID string) ([]core.Task, error) {
	return s.store.ListTasks(ctx, userID)
}

func (s *LedgerService) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	if t.Status == "" {
		t.Status = core.TaskTodo
	}
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	t.ID = s.newID()
	t.CreatedAt = s.now().UTC()
	t.UpdatedAt = t.CreatedAt
	if err := s.store.CreateTask(ctx, t); err != nil {
		return core.Task{}, err
	}
	return t, nil
}

func (s *LedgerService) UpdateTask(ctx context.Context, t core.Task) (core.Task, error) {
	old, err := s.store.GetTask(ctx, t.UserID, t.ID)
	if err != nil {
		return core.Task{}, err
	}
	if t.Status == "" {
		t.Status = old.Status
	}
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return core.Task{}, err
	}
	return t, nil
}

func (s *LedgerService) DeleteTask(ctx context.Context, userID, id string) error {
	return s.store.DeleteTask(ctx, userID, id)
}
