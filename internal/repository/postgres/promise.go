package postgres

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/picketly/api/internal/dbx"
	"github.com/picketly/api/internal/model"
)

func (db *DB) CreatePromise(ctx context.Context, p *model.Promise) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	p.ID = xid.New().String()
	p.Status = model.PromiseStatusPending

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO promises (id, user_id, opportunity_key, status, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.OpportunityKey, string(p.Status), string(p.Payload),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: creating promise: %w", err)
	}
	return nil
}

// ConfirmEmail verifies the user and submits the promise atomically.
func (db *DB) ConfirmEmail(ctx context.Context, userID, promiseID string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	err := dbx.WithTx(ctx, db.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET email_verified = true, updated_at = now() WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("verifying user %s: %w", userID, err)
		}
		if err := dbx.RequireOneRow(res); err != nil {
			return fmt.Errorf("verifying user %s: %w", userID, err)
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE promises SET status = $1, updated_at = now() WHERE id = $2`,
			string(model.PromiseStatusSubmitted), promiseID)
		if err != nil {
			return fmt.Errorf("submitting promise %s: %w", promiseID, err)
		}
		if err := dbx.RequireOneRow(res); err != nil {
			return fmt.Errorf("submitting promise %s: %w", promiseID, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: confirming email: %w", err)
	}
	return nil
}
