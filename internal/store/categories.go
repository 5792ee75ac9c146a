package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Category is a named spending/income bucket. Transactions reference
// categories by name, not id.
type Category struct {
	ID   int64
	Name string
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCategory creates a new category and returns its id. Returns
// ErrNameConflict if the name already exists.
func (s *Store) AddCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM categories WHERE name = ?)", name).Scan(&exists); err != nil {
			return fmt.Errorf("check category %q: %w", name, err)
		}
		if exists {
			return fmt.Errorf("category %q: %w", name, ErrNameConflict)
		}

		res, err := tx.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", name)
		if err != nil {
			return fmt.Errorf("insert category %q: %w", name, err)
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

// DeleteCategory removes a category by name. The sentinel default category
// cannot be deleted. Transactions still referencing a deleted category keep
// their now-dangling name; that inconsistency is accepted, not repaired.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	if name == UncategorizedName {
		return fmt.Errorf("store: the %q category cannot be deleted", UncategorizedName)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE name = ?", name); err != nil {
			return fmt.Errorf("delete category %q: %w", name, err)
		}
		return nil
	})
}

// RenameCategory renames a category and propagates the new name to every
// transaction referencing the old name and every rule targeting it, all
// within one transaction. Returns ErrNameConflict (with nothing changed) if
// newName collides with an existing category, and ErrNotFound for an unknown
// id.
func (s *Store) RenameCategory(ctx context.Context, id int64, newName string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var oldName string
		err := tx.QueryRowContext(ctx, "SELECT name FROM categories WHERE id = ?", id).Scan(&oldName)
		if err == sql.ErrNoRows {
			return fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load category %d: %w", id, err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM categories WHERE name = ? AND id != ?)", newName, id).Scan(&exists); err != nil {
			return fmt.Errorf("check category %q: %w", newName, err)
		}
		if exists {
			return fmt.Errorf("category %q: %w", newName, ErrNameConflict)
		}

		if _, err := tx.ExecContext(ctx, "UPDATE categories SET name = ? WHERE id = ?", newName, id); err != nil {
			return fmt.Errorf("rename category %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE transactions SET category = ? WHERE category = ?", newName, oldName); err != nil {
			return fmt.Errorf("propagate rename to transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE rules SET category_name = ? WHERE category_name = ?", newName, oldName); err != nil {
			return fmt.Errorf("propagate rename to rules: %w", err)
		}
		return nil
	})
}
