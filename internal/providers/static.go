package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

// defaultUnitsPerUSD anchors the development rate table. Cross rates are derived
// through USD, so KRW/JPY is 0.1 and USD/KRW is 1300.
var defaultUnitsPerUSD = map[string]string{
	"USD": "1",
	"KRW": "1300",
	"JPY": "130",
	"EUR": "0.92",
	"CNY": "7.2",
}

var defaultStaticPrices = map[string]PriceQuote{
	"AAPL": {Price: decimal.NewFromInt(190), Currency: "USD"},
	"GOOG": {Price: decimal.NewFromInt(170), Currency: "USD"},
}

// StaticProvider serves a fixed rate and price table for development and tests.
// Rates are the same for every date.
type StaticProvider struct {
	mu           sync.RWMutex
	unitsPerUSD  map[string]decimal.Decimal
	prices       map[string]PriceQuote
	defaultPrice *PriceQuote
}

// NewStaticProvider returns the development table. Symbols outside it are priced at
// 100 USD.
func NewStaticProvider() *StaticProvider {
	p := NewEmptyStaticProvider()
	for code, units := range defaultUnitsPerUSD {
		p.unitsPerUSD[code] = decimal.RequireFromString(units)
	}
	for symbol, q := range defaultStaticPrices {
		p.prices[symbol] = q
	}
	p.defaultPrice = &PriceQuote{Price: decimal.NewFromInt(100), Currency: "USD"}
	return p
}

// NewEmptyStaticProvider returns a provider that knows nothing until populated.
func NewEmptyStaticProvider() *StaticProvider {
	return &StaticProvider{
		unitsPerUSD: map[string]decimal.Decimal{},
		prices:      map[string]PriceQuote{},
	}
}

// SetUnitsPerUSD registers how many units of code one US dollar buys.
func (p *StaticProvider) SetUnitsPerUSD(code string, units decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unitsPerUSD[strings.ToUpper(code)] = units
}

// SetPrice registers a price for symbol on any exchange.
func (p *StaticProvider) SetPrice(symbol string, q PriceQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToUpper(symbol)] = q
}

func (p *StaticProvider) FetchRate(_ context.Context, base, quote string, _ core.Date) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, okBase := p.unitsPerUSD[strings.ToUpper(base)]
	q, okQuote := p.unitsPerUSD[strings.ToUpper(quote)]
	if !okBase || !okQuote || b.IsZero() {
		return decimal.Zero, fmt.Errorf("static rate %s/%s: %w", base, quote, core.ErrUpstreamUnavailable)
	}
	if strings.EqualFold(base, quote) {
		return decimal.NewFromInt(1), nil
	}
	return q.Div(b), nil
}

func (p *StaticProvider) FetchPrice(_ context.Context, symbol, exchange string) (PriceQuote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if q, ok := p.prices[strings.ToUpper(symbol)]; ok {
		return q, nil
	}
	if p.defaultPrice != nil {
		return *p.defaultPrice, nil
	}
	return PriceQuote{}, fmt.Errorf("static price %s.%s: %w", symbol, exchange, core.ErrUpstreamUnavailable)
}

func (p *StaticProvider) Source() string { return "static" }
