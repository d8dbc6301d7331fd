package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/model"
)

// UpsertUserByEmail inserts a new user or, when the email is taken, updates
// the existing row's full_name. The row is read back afterwards so the
// caller gets the canonical ID and timestamps either way.
//
// The generated xid is only used when the INSERT wins; on conflict the
// existing ID is kept.
func (db *DB) UpsertUserByEmail(ctx context.Context, email, fullName string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, full_name, email, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET
		     full_name  = excluded.full_name,
		     updated_at = excluded.updated_at`,
		xid.New().String(), fullName, email, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting user: %w", err)
	}

	u, err := db.scanUser(db.conn.QueryRowContext(ctx, userSelect+` WHERE email = ?`, email))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading upserted user: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	u, err := db.scanUser(db.conn.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

const userSelect = `SELECT id, full_name, email, email_verified, created_at, updated_at FROM users`

func (db *DB) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
