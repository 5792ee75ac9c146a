// Package store persists transactions, categories, keyword rules and settings
// in a single SQLite file. Every mutating operation runs inside a scoped SQL
// transaction that either commits fully or rolls back fully.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound reports an operation referencing a row that does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrNameConflict reports a write that would collide with an existing
	// unique name (category name or rule keyword).
	ErrNameConflict = errors.New("store: name already exists")
)

// UncategorizedName is the sentinel default category. It is seeded on first
// initialization and can never be deleted.
const UncategorizedName = "Uncategorized"

// defaultCategories is the seed set created when the categories table is
// empty.
var defaultCategories = []string{
	UncategorizedName, "Revenue", "COGS", "OpEx", "Marketing",
	"Salaries", "Rent", "Software", "Meals", "Travel",
	"Personal", "Transfer", "Utilities", "Insurance", "Taxes",
}

// Store wraps the SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, ensures the schema
// exists and seeds the default categories. Use ":memory:" for an in-memory
// database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	// SQLite allows a single writer at a time; a single pooled connection
	// also keeps ":memory:" databases from silently splitting per
	// connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := s.seedCategories(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: seed categories: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT,
		description TEXT,
		amount REAL,
		category TEXT NOT NULL DEFAULT 'Uncategorized',
		source_file TEXT,
		project_name TEXT,
		UNIQUE(date, description, amount, source_file)
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT UNIQUE NOT NULL,
		category_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// seedCategories inserts the default category set if the table is empty.
func (s *Store) seedCategories() error {
	var count int
	if err := s.db.QueryRow("SELECT count(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	return s.withTx(context.Background(), func(tx *sql.Tx) error {
		for _, name := range defaultCategories {
			if _, err := tx.Exec("INSERT INTO categories (name) VALUES (?)", name); err != nil {
				return fmt.Errorf("insert category %q: %w", name, err)
			}
		}
		return nil
	})
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on any error, including error exits partway through fn.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
