package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"finboard/internal/core"
	"finboard/internal/ports"
)

const transactionColumns = `id, user_id, account_id, category_id, type, amount_original, currency_original,
	amount_base, currency_base, date, memo, tags, created_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                         core.Transaction
		category                   sql.NullString
		amountOriginal, amountBase string
		date, tags, created        string
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &category, &tx.Type, &amountOriginal,
		&tx.CurrencyOriginal, &amountBase, &tx.CurrencyBase, &date, &tx.Memo, &tags, &created); err != nil {
		return tx, err
	}
	if category.Valid {
		id := category.String
		tx.CategoryID = &id
	}
	var err error
	if tx.AmountOriginal, err = parseDecimal(amountOriginal); err != nil {
		return tx, fmt.Errorf("parse amount_original: %w", err)
	}
	if tx.AmountBase, err = parseDecimal(amountBase); err != nil {
		return tx, fmt.Errorf("parse amount_base: %w", err)
	}
	if tx.Date, err = parseDay(date); err != nil {
		return tx, fmt.Errorf("parse date: %w", err)
	}
	if tx.CreatedAt, err = parseTime(created); err != nil {
		return tx, fmt.Errorf("parse created_at: %w", err)
	}
	tx.Tags = splitList(tags)
	return tx, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f ports.TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsEmpty() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsEmpty() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date, created_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return tx, fmt.Errorf("get transaction %s: %w", id, translate(err))
	}
	return tx, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.AccountID, nullableString(tx.CategoryID), string(tx.Type),
		tx.AmountOriginal.String(), tx.CurrencyOriginal, tx.AmountBase.String(), tx.CurrencyBase,
		formatDay(tx.Date), tx.Memo, joinList(tx.Tags), formatTime(tx.CreatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", translate(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, type = ?, amount_original = ?,
		 currency_original = ?, amount_base = ?, currency_base = ?, date = ?, memo = ?, tags = ?
		 WHERE user_id = ? AND id = ?`,
		tx.AccountID, nullableString(tx.CategoryID), string(tx.Type), tx.AmountOriginal.String(),
		tx.CurrencyOriginal, tx.AmountBase.String(), tx.CurrencyBase, formatDay(tx.Date), tx.Memo,
		joinList(tx.Tags), tx.UserID, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, translate(err))
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}
