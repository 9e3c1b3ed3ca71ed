// Package valuation derives account balances, holding values and currency totals.
package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/ports"
)

// Effect is the signed contribution of tx to its account's balance in the
// transaction's original currency. Transfers contribute nothing: a transfer has no
// counter-posting on the receiving account yet.
func Effect(tx core.Transaction) decimal.Decimal {
	switch tx.Type {
	case core.Income:
		return tx.AmountOriginal
	case core.Expense:
		return tx.AmountOriginal.Neg()
	default:
		return decimal.Zero
	}
}

// Balance folds the whole history.
func Balance(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(Effect(tx))
	}
	return total
}

// BalanceAsOf folds only transactions dated on or before date.
func BalanceAsOf(txs []core.Transaction, date core.Date) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Date.OnOrBefore(date) {
			total = total.Add(Effect(tx))
		}
	}
	return total
}

// Calculator computes stored accounts' balances.
type Calculator struct {
	txs ports.TransactionStore
}

func NewCalculator(txs ports.TransactionStore) *Calculator {
	return &Calculator{txs: txs}
}

// Balance returns the all-history balance of the account in its native currency.
func (c *Calculator) Balance(ctx context.Context, userID, accountID string) (decimal.Decimal, error) {
	txs, err := c.txs.ListTransactions(ctx, userID, ports.TransactionFilter{AccountID: accountID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list transactions for account %s: %w", accountID, err)
	}
	return Balance(txs), nil
}

// ByAccount groups transactions by account id.
func ByAccount(txs []core.Transaction) map[string][]core.Transaction {
	out := make(map[string][]core.Transaction)
	for _, tx := range txs {
		out[tx.AccountID] = append(out[tx.AccountID], tx)
	}
	return out
}
