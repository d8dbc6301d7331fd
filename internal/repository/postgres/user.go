package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/model"
)

const userColumns = `id, full_name, email, email_verified, created_at, updated_at`

// UpsertUserByEmail relies on the unique index on email: a conflicting
// insert turns into an update of full_name and keeps the existing id.
func (db *DB) UpsertUserByEmail(ctx context.Context, email, fullName string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO users (id, full_name, email, email_verified)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, updated_at = now()
		RETURNING ` + userColumns

	u, err := scanUser(db.conn.QueryRowContext(ctx, query, xid.New().String(), fullName, email))
	if err != nil {
		return nil, fmt.Errorf("postgres: upserting user: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
