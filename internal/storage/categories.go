package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finboard/internal/core"
)

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, icon FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, icon FROM categories WHERE user_id = ? AND id = ?`, userID, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Icon)
	if err != nil {
		return c, fmt.Errorf("get category %s: %w", id, translate(err))
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, type, icon) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Icon)
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.Name, translate(err))
	}
	return nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, icon = ? WHERE user_id = ? AND id = ?`,
		c.Name, string(c.Type), c.Icon, c.UserID, c.ID)
	if err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, translate(err))
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCategory removes the category and detaches it from transactions.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET category_id = NULL WHERE user_id = ? AND category_id = ?`, userID, id); err != nil {
			return fmt.Errorf("detach category %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, userID, id)
		if err != nil {
			return fmt.Errorf("delete category %s: %w", id, err)
		}
		if err := requireRow(res); err != nil {
			return fmt.Errorf("delete category %s: %w", id, err)
		}
		return nil
	})
}
