// Package duckdb stores per-record somatic statistics in DuckDB so annotated
// runs can be queried without re-parsing the VCF.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for somatic statistics.
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
			return nil, fmt.Errorf("create stats directory: %w", err)
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

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		started_at TIMESTAMP
	)`); err != nil {
		return err
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS run_inputs (
		run_id VARCHAR,
		seq INTEGER,
		input_path VARCHAR,
		input_size BIGINT,
		input_mtime TIMESTAMP
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS somatic_stats (
		run_id VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		filter VARCHAR,
		variant_type VARCHAR,
		tum_ref BIGINT,
		tum_alt BIGINT,
		tum_total BIGINT,
		norm_ref BIGINT,
		norm_alt BIGINT,
		norm_total BIGINT,
		tum_vaf DOUBLE,
		norm_vaf DOUBLE,
		tum_vaf_total DOUBLE,
		norm_vaf_total DOUBLE,
		tum_var_fraction DOUBLE,
		log_fisher DOUBLE,
		log_fisher_total DOUBLE
	)`)
	return err
}
