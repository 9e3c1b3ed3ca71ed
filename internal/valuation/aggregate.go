package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/fx"
)

// Item is one currency-tagged amount.
type Item struct {
	Currency string
	Amount   decimal.Decimal
}

// Aggregate sums items per currency. Buckets keep the order in which each currency was
// first seen.
func Aggregate(items []Item) []core.CurrencyTotal {
	index := make(map[string]int)
	var out []core.CurrencyTotal
	for _, it := range items {
		code := core.NormalizeCode(it.Currency)
		i, ok := index[code]
		if !ok {
			i = len(out)
			index[code] = i
			out = append(out, core.CurrencyTotal{Currency: code, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(it.Amount)
	}
	return out
}

// ToDisplay re-expresses every bucket in each display currency at the rates of asOf and
// sums them: total(d) = sum over c of total(c) x rate(c, d).
func ToDisplay(ctx context.Context, rates fx.RateSource, totals []core.CurrencyTotal, display []string, asOf core.Date) ([]core.CurrencyTotal, error) {
	out := make([]core.CurrencyTotal, 0, len(display))
	for _, d := range display {
		d = core.NormalizeCode(d)
		sum := decimal.Zero
		for _, bucket := range totals {
			r, err := rates.Rate(ctx, bucket.Currency, d, asOf)
			if err != nil {
				return nil, fmt.Errorf("convert %s to %s: %w", bucket.Currency, d, err)
			}
			sum = sum.Add(r.Convert(bucket.Total))
		}
		out = append(out, core.CurrencyTotal{Currency: d, Total: sum})
	}
	return out, nil
}
