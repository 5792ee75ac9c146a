package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Rule maps a keyword to a category. Matching is case-insensitive substring
// matching, performed by the categorization engine.
type Rule struct {
	ID           int64
	Keyword      string
	CategoryName string
}

// ListRules returns all rules ordered lexicographically by keyword. That
// order is the canonical tie-break when several keywords match one
// description: the first match in keyword order wins.
func (s *Store) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, keyword, category_name FROM rules ORDER BY keyword ASC")
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Keyword, &r.CategoryName); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddRule creates a new keyword rule and returns its id. Returns
// ErrNameConflict if a rule for the keyword already exists.
func (s *Store) AddRule(ctx context.Context, keyword, categoryName string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM rules WHERE keyword = ?)", keyword).Scan(&exists); err != nil {
			return fmt.Errorf("check rule %q: %w", keyword, err)
		}
		if exists {
			return fmt.Errorf("rule %q: %w", keyword, ErrNameConflict)
		}

		res, err := tx.ExecContext(ctx, "INSERT INTO rules (keyword, category_name) VALUES (?, ?)", keyword, categoryName)
		if err != nil {
			return fmt.Errorf("insert rule %q: %w", keyword, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteRule removes a rule by id. Deleting a rule that does not exist is a
// no-op.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete rule %d: %w", id, err)
		}
		return nil
	})
}
