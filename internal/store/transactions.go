package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Transaction is one persisted statement line. The natural key for
// deduplication is (date, description, amount, source_file); the surrogate ID
// is assigned on insert.
type Transaction struct {
	ID          int64
	Date        string
	Description string
	Amount      float64
	Category    string
	SourceFile  string
	ProjectName string
}

// FieldUpdate is a partial update of one transaction row.
type FieldUpdate struct {
	ID     int64
	Fields map[string]any
}

// UpdateResult reports the outcome of one row's update within a batch.
type UpdateResult struct {
	ID  int64
	Err error
}

// CategoryUpdate assigns a category to one transaction row.
type CategoryUpdate struct {
	ID       int64
	Category string
}

// mutableFields is the allow-list of columns UpdateFields may touch. Field
// names from callers are validated against this list before any SQL is built;
// column names are never taken from input directly.
var mutableFields = []string{"date", "amount", "category", "project_name"}

// InsertBatch inserts transactions, silently skipping any row whose natural
// key already exists. It returns the number of rows actually inserted, which
// may be less than len(txs).
func (s *Store) InsertBatch(ctx context.Context, txs []Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (date, description, amount, category, source_file, project_name)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txs {
			category := t.Category
			if category == "" {
				category = UncategorizedName
			}
			res, err := stmt.ExecContext(ctx, t.Date, t.Description, t.Amount, category, t.SourceFile, nullable(t.ProjectName))
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpdateFields applies a partial update to one transaction row. Only fields
// on the allow-list are accepted; an unknown field name fails the whole call
// before any SQL runs. Returns ErrNotFound if the id does not exist.
func (s *Store) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	// Deterministic column order, validated against the allow-list.
	var columns []string
	var args []any
	for _, name := range mutableFields {
		if v, ok := fields[name]; ok {
			columns = append(columns, name+" = ?")
			args = append(args, v)
		}
	}
	if len(columns) != len(fields) {
		for name := range fields {
			if !isMutableField(name) {
				return fmt.Errorf("store: field %q is not updatable", name)
			}
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)", id).Scan(&exists); err != nil {
			return fmt.Errorf("check transaction %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}

		query := "UPDATE transactions SET " + strings.Join(columns, ", ") + " WHERE id = ?"
		if _, err := tx.ExecContext(ctx, query, append(args, id)...); err != nil {
			return fmt.Errorf("update transaction %d: %w", id, err)
		}
		return nil
	})
}

// UpdateFieldsBatch applies each row's update in its own transaction and
// reports the outcome per id. One row's failure does not stop the rest.
func (s *Store) UpdateFieldsBatch(ctx context.Context, updates []FieldUpdate) []UpdateResult {
	results := make([]UpdateResult, 0, len(updates))
	for _, u := range updates {
		results = append(results, UpdateResult{
			ID:  u.ID,
			Err: s.UpdateFields(ctx, u.ID, u.Fields),
		})
	}
	return results
}

// UpdateCategoriesBatch sets categories for many rows in a single
// transaction and returns the number of rows changed. Used by
// auto-categorization to apply a staged pass atomically.
func (s *Store) UpdateCategoriesBatch(ctx context.Context, updates []CategoryUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	changed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE transactions SET category = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("prepare category update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			res, err := stmt.ExecContext(ctx, u.Category, u.ID)
			if err != nil {
				return fmt.Errorf("update category for %d: %w", u.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			changed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// DeleteBatch removes the given rows. Ids that do not exist are ignored; an
// empty id list is a no-op.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		query := "DELETE FROM transactions WHERE id IN (" + placeholders + ")"
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		return nil
	})
}

// ListAll returns every transaction ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]Transaction, error) {
	return s.listWhere(ctx, "", nil)
}

// ListUncategorized returns transactions still carrying the sentinel default
// category, ordered by id.
func (s *Store) ListUncategorized(ctx context.Context) ([]Transaction, error) {
	return s.listWhere(ctx, "WHERE category = ?", []any{UncategorizedName})
}

func (s *Store) listWhere(ctx context.Context, where string, args []any) ([]Transaction, error) {
	query := `
		SELECT id, date, description, amount, category, source_file, project_name
		FROM transactions ` + where + `
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var project sql.NullString
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.Amount, &t.Category, &t.SourceFile, &project); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.ProjectName = project.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// HistoryCategory returns the most frequent non-default category among
// transactions whose description equals the given one exactly. Ties break by
// category name ascending; no history returns the empty string.
func (s *Store) HistoryCategory(ctx context.Context, description string) (string, error) {
	var category string
	err := s.db.QueryRowContext(ctx, `
		SELECT category
		FROM transactions
		WHERE description = ? AND category != ?
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC
		LIMIT 1
	`, description, UncategorizedName).Scan(&category)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query history: %w", err)
	}
	return category, nil
}

func isMutableField(name string) bool {
	for _, f := range mutableFields {
		if f == name {
			return true
		}
	}
	return false
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
