// Package sqlite implements repository.Store on an embedded SQLite file.
//
// WHY A SECOND BACKEND?
// Production runs on Postgres (see repository/postgres). SQLite gives a
// zero-infrastructure backend for local development (DB_DRIVER=sqlite) and
// lets repository and service tests run against a real SQL engine with
// ":memory:".
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler
// is needed to build or cross-compile.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/picketly/api/internal/dbx"
	"github.com/picketly/api/internal/repository"
)

// DB wraps the connection pool and implements repository.Store.
type DB struct {
	conn    *sql.DB
	timeout time.Duration
}

var _ repository.Store = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithQueryTimeout bounds every statement. Zero means no bound beyond the
// caller's context.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *DB) { db.timeout = d }
}

// New opens the database at dbPath and brings the schema up to date.
//
// dbPath examples:
//   - "data/picketly.db" → file on disk
//   - ":memory:"         → in-memory, gone on Close (tests)
//
// ONE CONNECTION:
// The pool is limited to a single connection. PRAGMAs in SQLite are
// per-connection, and every connection to ":memory:" is a separate empty
// database, so a second pooled connection would silently see no tables.
// Writes in SQLite are serialized anyway.
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	// Off by default in SQLite; promises.user_id relies on it.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return dbx.WithTimeout(ctx, db.timeout)
}

// migrate creates the schema. Every statement is idempotent so it runs on
// each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			full_name      TEXT NOT NULL,
			email          TEXT NOT NULL UNIQUE,
			email_verified BOOLEAN NOT NULL DEFAULT 0,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS promises (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES users(id),
			opportunity_key TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending_email_verification'
			                CHECK (status IN ('pending_email_verification', 'submitted')),
			payload         TEXT NOT NULL,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_promises_user_id ON promises(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating promises table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS artworks (
			id              TEXT PRIMARY KEY,
			opportunity_key TEXT NOT NULL,
			type            TEXT NOT NULL,
			title           TEXT NOT NULL,
			visibility      TEXT NOT NULL CHECK (visibility IN ('public', 'league', 'private')),
			content_url     TEXT,
			content_text    TEXT,
			exhibited_by    TEXT NOT NULL DEFAULT '',
			exhibit_status  TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_artworks_opportunity ON artworks(opportunity_key, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating artworks table: %w", err)
	}

	// Databases created before exhibit tracking lack these columns.
	if err := db.addColumnIfNotExists("artworks", "exhibited_by", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding exhibited_by to artworks: %w", err)
	}
	if err := db.addColumnIfNotExists("artworks", "exhibit_status", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding exhibit_status to artworks: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
