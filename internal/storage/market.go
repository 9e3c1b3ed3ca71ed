package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finboard/internal/core"
)

// LatestPrice returns the price with the greatest as_of on or before asOf.
func (r *SQLiteRepository) LatestPrice(ctx context.Context, symbol, exchange string, asOf core.Date) (core.Price, bool, error) {
	var (
		p           = core.Price{Symbol: symbol, Exchange: exchange}
		day, amount string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT as_of, price, currency_code FROM prices
		 WHERE symbol = ? AND exchange = ? AND as_of <= ?
		 ORDER BY as_of DESC LIMIT 1`,
		symbol, exchange, asOf.String()).Scan(&day, &amount, &p.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Price{}, false, nil
	}
	if err != nil {
		return core.Price{}, false, fmt.Errorf("latest price %s.%s: %w", symbol, exchange, err)
	}
	if p.AsOf, err = parseDay(day); err != nil {
		return core.Price{}, false, fmt.Errorf("parse price date: %w", err)
	}
	if p.Price, err = parseDecimal(amount); err != nil {
		return core.Price{}, false, fmt.Errorf("parse price: %w", err)
	}
	return p, true, nil
}

func (r *SQLiteRepository) UpsertPrice(ctx context.Context, p core.Price) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO prices (symbol, exchange, as_of, price, currency_code) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (symbol, exchange, as_of) DO UPDATE SET price = excluded.price, currency_code = excluded.currency_code`,
		p.Symbol, p.Exchange, p.AsOf.String(), p.Price.String(), p.CurrencyCode)
	if err != nil {
		return fmt.Errorf("upsert price %s.%s: %w", p.Symbol, p.Exchange, err)
	}
	return nil
}

func (r *SQLiteRepository) GetFxRate(ctx context.Context, base, quote string, date core.Date) (core.FxRate, bool, error) {
	var (
		fx   = core.FxRate{Date: date, BaseCode: base, QuoteCode: quote}
		rate string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT rate, source FROM fx_rates WHERE date = ? AND base_code = ? AND quote_code = ?`,
		date.String(), base, quote).Scan(&rate, &fx.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FxRate{}, false, nil
	}
	if err != nil {
		return core.FxRate{}, false, fmt.Errorf("get fx rate %s/%s: %w", base, quote, err)
	}
	if fx.Rate, err = parseDecimal(rate); err != nil {
		return core.FxRate{}, false, fmt.Errorf("parse fx rate: %w", err)
	}
	return fx, true, nil
}

func (r *SQLiteRepository) UpsertFxRate(ctx context.Context, fx core.FxRate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fx_rates (date, base_code, quote_code, rate, source) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (date, base_code, quote_code) DO UPDATE SET rate = excluded.rate, source = excluded.source`,
		fx.Date.String(), fx.BaseCode, fx.QuoteCode, fx.Rate.String(), fx.Source)
	if err != nil {
		return fmt.Errorf("upsert fx rate %s/%s: %w", fx.BaseCode, fx.QuoteCode, err)
	}
	return nil
}

func (r *SQLiteRepository) ListFxRates(ctx context.Context, date core.Date) ([]core.FxRate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT base_code, quote_code, rate, source FROM fx_rates WHERE date = ? ORDER BY base_code, quote_code`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("list fx rates: %w", err)
	}
	defer rows.Close()

	var out []core.FxRate
	for rows.Next() {
		var (
			fx   = core.FxRate{Date: date}
			rate string
		)
		if err := rows.Scan(&fx.BaseCode, &fx.QuoteCode, &rate, &fx.Source); err != nil {
			return nil, fmt.Errorf("scan fx rate: %w", err)
		}
		if fx.Rate, err = parseDecimal(rate); err != nil {
			return nil, fmt.Errorf("parse fx rate: %w", err)
		}
		out = append(out, fx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fx rates: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, name, decimals FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Decimals); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertCurrency(ctx context.Context, c core.Currency) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO currencies (code, name, decimals) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name, decimals = excluded.decimals`,
		c.Code, c.Name, c.Decimals)
	if err != nil {
		return fmt.Errorf("upsert currency %s: %w", c.Code, err)
	}
	return nil
}
