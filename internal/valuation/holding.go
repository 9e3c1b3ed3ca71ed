package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/market"
)

// Valuation is a holding's market value in the currency its price is quoted in.
type Valuation struct {
	Amount   decimal.Decimal
	Currency string
	// Priced is false when no price was known; Amount is then zero and Currency is the
	// holding's own currency.
	Priced    bool
	PriceDate core.Date
}

type HoldingValuator struct {
	prices market.PriceSource
}

func NewHoldingValuator(prices market.PriceSource) *HoldingValuator {
	return &HoldingValuator{prices: prices}
}

// Value returns quantity x latest price as of asOf. The price's currency wins over the
// holding's stored currency, which only describes the cost basis.
func (v *HoldingValuator) Value(ctx context.Context, h core.Holding, asOf core.Date) (Valuation, error) {
	p, ok, err := v.prices.LatestPrice(ctx, h.Symbol, h.Exchange, asOf)
	if err != nil {
		return Valuation{}, fmt.Errorf("value holding %s.%s: %w", h.Symbol, h.Exchange, err)
	}
	if !ok {
		return Valuation{Amount: decimal.Zero, Currency: h.CurrencyCode}, nil
	}
	currency := p.CurrencyCode
	if currency == "" {
		currency = h.CurrencyCode
	}
	return Valuation{
		Amount:    h.Quantity.Mul(p.Price),
		Currency:  currency,
		Priced:    true,
		PriceDate: p.AsOf,
	}, nil
}
