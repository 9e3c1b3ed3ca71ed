package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finboard/internal/core"
)

func (r *SQLiteRepository) GetSettings(ctx context.Context, userID string) (core.Setting, error) {
	var (
		s       = core.Setting{UserID: userID}
		display string
		rule    string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT base_currency, display_currencies, locale, rounding_rule FROM settings WHERE user_id = ?`,
		userID).Scan(&s.BaseCurrency, &display, &s.Locale, &rule)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Setting{}, core.ErrSettingsNotFound
	}
	if err != nil {
		return core.Setting{}, fmt.Errorf("get settings: %w", err)
	}
	s.DisplayCurrencies = splitList(display)
	s.RoundingRule = core.RoundingRule(rule)
	return s, nil
}

func (r *SQLiteRepository) PutSettings(ctx context.Context, s core.Setting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, base_currency, display_currencies, locale, rounding_rule) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET base_currency = excluded.base_currency,
		 display_currencies = excluded.display_currencies, locale = excluded.locale,
		 rounding_rule = excluded.rounding_rule`,
		s.UserID, s.BaseCurrency, joinList(s.DisplayCurrencies), s.Locale, string(s.RoundingRule))
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
