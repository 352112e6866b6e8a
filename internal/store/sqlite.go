// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/quota/entity persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer: all mutations funnel through one connection, which
	// together with the upsert statements gives linearizable per-key
	// updates without any cross-process coordination.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id    INTEGER PRIMARY KEY,
			role       TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (role IN ('user', 'admin', 'owner'))
		);

		CREATE TABLE IF NOT EXISTS quota (
			user_id INTEGER NOT NULL,
			day     TEXT NOT NULL,
			count   INTEGER NOT NULL DEFAULT 0,

			PRIMARY KEY (user_id, day),
			CHECK (count >= 0)
		);

		CREATE TABLE IF NOT EXISTS entities (
			kind       TEXT NOT NULL,
			value      TEXT NOT NULL,
			hits       INTEGER NOT NULL,
			payload    TEXT NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen  TEXT NOT NULL,

			PRIMARY KEY (kind, value),
			CHECK (hits >= 1)
		);

		CREATE INDEX IF NOT EXISTS idx_entities_hits ON entities(hits DESC);

		CREATE TABLE IF NOT EXISTS query_log (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			query      TEXT NOT NULL,
			verdict    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_query_log_user ON query_log(user_id);
		CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
