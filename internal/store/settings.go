package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// startingBalanceKey is the single settings row the core uses. The value is
// overwritten wholesale on every edit; there is no history.
const startingBalanceKey = "starting_balance"

// StartingBalance returns the user-supplied starting balance used for the
// running-balance roll-forward, or 0 when it has never been set.
func (s *Store) StartingBalance(ctx context.Context) (float64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", startingBalanceKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query starting balance: %w", err)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse starting balance %q: %w", raw, err)
	}
	return v, nil
}

// SetStartingBalance overwrites the starting balance.
func (s *Store) SetStartingBalance(ctx context.Context, v float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, startingBalanceKey, strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return fmt.Errorf("set starting balance: %w", err)
		}
		return nil
	})
}
