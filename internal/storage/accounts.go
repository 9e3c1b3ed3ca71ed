package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finboard/internal/core"
)

const accountColumns = `id, user_id, name, currency_code, type, note, created_at, updated_at`

func scanAccount(s scanner) (core.Account, error) {
	var (
		a                core.Account
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &a.CurrencyCode, &a.Type, &a.Note, &created, &updated); err != nil {
		return a, err
	}
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return a, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return a, fmt.Errorf("parse updated_at: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
	a, err := scanAccount(row)
	if err != nil {
		return a, fmt.Errorf("get account %s: %w", id, translate(err))
	}
	return a, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.CurrencyCode, string(a.Type), a.Note, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create account: %w", translate(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, currency_code = ?, type = ?, note = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		a.Name, a.CurrencyCode, string(a.Type), a.Note, formatTime(a.UpdatedAt), a.UserID, a.ID)
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, translate(err))
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, err)
	}
	return nil
}

// DeleteAccount removes the account and its transactions.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, userID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE user_id = ? AND account_id = ?`, userID, id); err != nil {
			return fmt.Errorf("delete account transactions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
		if err != nil {
			return fmt.Errorf("delete account %s: %w", id, err)
		}
		if err := requireRow(res); err != nil {
			return fmt.Errorf("delete account %s: %w", id, err)
		}
		return nil
	})
}
