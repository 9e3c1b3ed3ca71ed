// Package providers supplies FX rates and market prices from outside the store.
package providers

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

// PriceQuote is a market price in the currency the instrument trades in.
type PriceQuote struct {
	Price    decimal.Decimal
	Currency string
}

// RateProvider returns how many units of quote one unit of base buys on date.
type RateProvider interface {
	FetchRate(ctx context.Context, base, quote string, date core.Date) (decimal.Decimal, error)
}

// PriceProvider returns the current market price of an instrument.
type PriceProvider interface {
	FetchPrice(ctx context.Context, symbol, exchange string) (PriceQuote, error)
}

// Provider serves both rates and prices.
type Provider interface {
	RateProvider
	PriceProvider
}

// Canceled reports whether err comes from a canceled or expired context. Such errors
// abort the caller instead of degrading to a fallback value.
func Canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
