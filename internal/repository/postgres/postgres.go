// Package postgres implements repository.Store on PostgreSQL through the
// pgx database/sql driver. The schema lives in embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/picketly/api/internal/dbx"
	"github.com/picketly/api/internal/repository"
	"github.com/picketly/api/internal/repository/postgres/migrations"
)

// DB implements repository.Store.
type DB struct {
	conn    *sql.DB
	timeout time.Duration
}

var _ repository.Store = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithQueryTimeout bounds every statement.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *DB) { db.timeout = d }
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	db := New(conn, opts...)
	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	return db, nil
}

// New wraps an existing pool. Tests pass a sqlmock connection.
func New(conn *sql.DB, opts ...Option) *DB {
	db := &DB{conn: conn}
	for _, opt := range opts {
		opt(db)
	}
	return db
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

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies every pending embedded migration.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("postgres: setting goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db.conn, "."); err != nil {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}
	return nil
}
