// Package duckdb records conversion runs in DuckDB so converted watchlists
// can be queried by descriptor or gene after the fact.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding conversion runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversion_runs (
		run_id VARCHAR PRIMARY KEY,
		started_at TIMESTAMP,
		input VARCHAR,
		input_size BIGINT,
		input_modtime TIMESTAMP,
		contig VARCHAR,
		converted INTEGER,
		noop INTEGER,
		skipped INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS converted_variants (
		run_id VARCHAR,
		descriptor VARCHAR,
		kind VARCHAR,
		gene VARCHAR,
		codon BIGINT,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		alt_codons VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS conversion_failures (
		run_id VARCHAR,
		descriptor VARCHAR,
		line INTEGER,
		reason VARCHAR,
		message VARCHAR
	)`,
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
