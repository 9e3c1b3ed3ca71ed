package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCash       AccountType = "cash"
	AccountBank       AccountType = "bank"
	AccountCreditCard AccountType = "credit_card"
	AccountBrokerage  AccountType = "brokerage"
	AccountOther      AccountType = "other"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// UncategorizedLabel groups expenses without a category, or with a deleted one, in the
// breakdown. Such expenses are kept rather than skipped, so the breakdown always sums
// to the month's expenses.
const UncategorizedLabel = "Uncategorized"

type (
	AccountType     string
	TransactionType string
	TaskStatus      string

	Account struct {
		ID           string      `json:"id"`
		UserID       string      `json:"userId"`
		Name         string      `json:"name"`
		CurrencyCode string      `json:"currencyCode"`
		Type         AccountType `json:"type"`
		Note         string      `json:"note,omitempty"`
		CreatedAt    time.Time   `json:"createdAt"`
		UpdatedAt    time.Time   `json:"updatedAt"`
	}

	Transaction struct {
		ID               string          `json:"id"`
		UserID           string          `json:"userId"`
		AccountID        string          `json:"accountId"`
		CategoryID       *string         `json:"categoryId"`
		Type             TransactionType `json:"type"`
		AmountOriginal   decimal.Decimal `json:"amountOriginal"`
		CurrencyOriginal string          `json:"currencyOriginal"`
		AmountBase       decimal.Decimal `json:"amountBase"`
		CurrencyBase     string          `json:"currencyBase"`
		Date             Date            `json:"date"`
		Memo             string          `json:"memo,omitempty"`
		Tags             []string        `json:"tags,omitempty"`
		CreatedAt        time.Time       `json:"createdAt"`
	}

	Holding struct {
		ID           string          `json:"id"`
		UserID       string          `json:"userId"`
		Symbol       string          `json:"symbol"`
		Exchange     string          `json:"exchange"`
		Quantity     decimal.Decimal `json:"quantity"`
		AvgCost      decimal.Decimal `json:"avgCost"`
		CurrencyCode string          `json:"currencyCode"`
		Note         string          `json:"note,omitempty"`
	}

	Price struct {
		Symbol       string          `json:"symbol"`
		Exchange     string          `json:"exchange"`
		AsOf         Date            `json:"asOf"`
		Price        decimal.Decimal `json:"price"`
		CurrencyCode string          `json:"currencyCode"`
	}

	FxRate struct {
		Date      Date            `json:"date"`
		BaseCode  string          `json:"baseCode"`
		QuoteCode string          `json:"quoteCode"`
		Rate      decimal.Decimal `json:"rate"`
		Source    string          `json:"source"`
	}

	Currency struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	}

	Setting struct {
		UserID            string       `json:"userId"`
		BaseCurrency      string       `json:"baseCurrency"`
		DisplayCurrencies []string     `json:"displayCurrencies"`
		Locale            string       `json:"locale"`
		RoundingRule      RoundingRule `json:"roundingRule"`
	}

	Category struct {
		ID     string          `json:"id"`
		UserID string          `json:"userId"`
		Name   string          `json:"name"`
		Type   TransactionType `json:"type"`
		Icon   string          `json:"icon,omitempty"`
	}

	Task struct {
		ID        string     `json:"id"`
		UserID    string     `json:"userId"`
		Title     string     `json:"title"`
		DueDate   Date       `json:"dueDate"`
		Status    TaskStatus `json:"status"`
		Note      string     `json:"note,omitempty"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt time.Time  `json:"updatedAt"`
	}
)

// Rate sources stored alongside FX rates.
const (
	SourceInternal = "internal"
	SourceManual   = "manual"
)

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateCurrency(field, code string) error {
	if len(code) != 3 {
		return NewValidationError(field, "must be a 3-letter currency code")
	}
	if !IsKnownCurrency(code) {
		return NewValidationError(field, "is not a known currency")
	}
	return nil
}

func validateName(field, s string, max int) error {
	if strings.TrimSpace(s) == "" {
		return NewValidationError(field, "is required")
	}
	if len(s) > max {
		return NewValidationError(field, "is too long")
	}
	return nil
}

func (t AccountType) Validate() error {
	switch t {
	case AccountCash, AccountBank, AccountCreditCard, AccountBrokerage, AccountOther:
		return nil
	}
	return NewValidationError("type", "must be one of cash, bank, credit_card, brokerage, other")
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense, Transfer:
		return nil
	}
	return NewValidationError("type", "must be one of income, expense, transfer")
}

func (s TaskStatus) Validate() error {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return nil
	}
	return NewValidationError("status", "must be one of todo, in_progress, done")
}

func (a Account) Validate() error {
	if err := validateName("name", a.Name, 100); err != nil {
		return err
	}
	if err := validateCurrency("currencyCode", a.CurrencyCode); err != nil {
		return err
	}
	return a.Type.Validate()
}

func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.AccountID) == "" {
		return NewValidationError("accountId", "is required")
	}
	if err := tx.Type.Validate(); err != nil {
		return err
	}
	if !tx.AmountOriginal.IsPositive() {
		return NewValidationError("amountOriginal", "must be positive")
	}
	if err := validateCurrency("currencyOriginal", tx.CurrencyOriginal); err != nil {
		return err
	}
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if len(tx.Memo) > 500 {
		return NewValidationError("memo", "is too long")
	}
	return nil
}

func (h Holding) Validate() error {
	if err := validateName("symbol", h.Symbol, 32); err != nil {
		return err
	}
	if err := validateName("exchange", h.Exchange, 32); err != nil {
		return err
	}
	if h.Quantity.IsNegative() {
		return NewValidationError("quantity", "must not be negative")
	}
	if h.AvgCost.IsNegative() {
		return NewValidationError("avgCost", "must not be negative")
	}
	return validateCurrency("currencyCode", h.CurrencyCode)
}

func (s Setting) Validate() error {
	if err := validateCurrency("baseCurrency", s.BaseCurrency); err != nil {
		return err
	}
	for _, c := range s.DisplayCurrencies {
		if err := validateCurrency("displayCurrencies", c); err != nil {
			return err
		}
	}
	return s.RoundingRule.Validate()
}

func (c Category) Validate() error {
	if err := validateName("name", c.Name, 100); err != nil {
		return err
	}
	if c.Type != Income && c.Type != Expense {
		return NewValidationError("type", "must be income or expense")
	}
	return nil
}

func (t Task) Validate() error {
	if err := validateName("title", t.Title, 200); err != nil {
		return err
	}
	if !t.DueDate.IsEmpty() {
		if err := t.DueDate.Validate(); err != nil {
			return err
		}
	}
	return t.Status.Validate()
}

func (r FxRate) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if r.BaseCode == "" || r.QuoteCode == "" {
		return NewValidationError("pair", "base and quote are required")
	}
	if !r.Rate.IsPositive() {
		return NewValidationError("rate", "must be positive")
	}
	return nil
}
