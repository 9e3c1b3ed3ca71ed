package storage

import (
	"context"
	"fmt"

	"finboard/internal/core"
)

const holdingColumns = `id, user_id, symbol, exchange, quantity, avg_cost, currency_code, note`

func scanHolding(s scanner) (core.Holding, error) {
	var (
		h                 core.Holding
		quantity, avgCost string
	)
	if err := s.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Exchange, &quantity, &avgCost, &h.CurrencyCode, &h.Note); err != nil {
		return h, err
	}
	var err error
	if h.Quantity, err = parseDecimal(quantity); err != nil {
		return h, fmt.Errorf("parse quantity: %w", err)
	}
	if h.AvgCost, err = parseDecimal(avgCost); err != nil {
		return h, fmt.Errorf("parse avg_cost: %w", err)
	}
	return h, nil
}

func (r *SQLiteRepository) ListHoldings(ctx context.Context, userID string) ([]core.Holding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE user_id = ? ORDER BY symbol, exchange`, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []core.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetHolding(ctx context.Context, userID, id string) (core.Holding, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE user_id = ? AND id = ?`, userID, id)
	h, err := scanHolding(row)
	if err != nil {
		return h, fmt.Errorf("get holding %s: %w", id, translate(err))
	}
	return h, nil
}

func (r *SQLiteRepository) CreateHolding(ctx context.Context, h core.Holding) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO holdings (`+holdingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Symbol, h.Exchange, h.Quantity.String(), h.AvgCost.String(), h.CurrencyCode, h.Note)
	if err != nil {
		return fmt.Errorf("create holding: %w", translate(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateHolding(ctx context.Context, h core.Holding) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE holdings SET symbol = ?, exchange = ?, quantity = ?, avg_cost = ?, currency_code = ?, note = ?
		 WHERE user_id = ? AND id = ?`,
		h.Symbol, h.Exchange, h.Quantity.String(), h.AvgCost.String(), h.CurrencyCode, h.Note, h.UserID, h.ID)
	if err != nil {
		return fmt.Errorf("update holding %s: %w", h.ID, translate(err))
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("update holding %s: %w", h.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteHolding(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete holding %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("delete holding %s: %w", id, err)
	}
	return nil
}
