package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"albion-market/internal/logger"
	_ "modernc.org/sqlite"
)

// SchemaVersion is the layout of every table below. The database is a pure
// cache, so a mismatch drops and recreates all tables instead of migrating.
const SchemaVersion = 5

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema.
func Open(path string) (*DB, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)

	if version == SchemaVersion {
		return nil
	}
	if version != 0 {
		logger.Warn("DB", fmt.Sprintf("Schema v%d != v%d, rebuilding cache", version, SchemaVersion))
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DROP TABLE IF EXISTS schema_version;
		DROP TABLE IF EXISTS static_data;
		DROP TABLE IF EXISTS config;

		CREATE TABLE schema_version (version INTEGER PRIMARY KEY);

		CREATE TABLE static_data (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema v%d: %w", SchemaVersion, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("DB", fmt.Sprintf("Created schema v%d", SchemaVersion))
	return nil
}
