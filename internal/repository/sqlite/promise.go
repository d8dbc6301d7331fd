package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/picketly/api/internal/dbx"
	"github.com/picketly/api/internal/model"
)

// CreatePromise inserts p as pending. ID, Status and timestamps are set on
// p in place; UserID, OpportunityKey and Payload come from the caller.
func (db *DB) CreatePromise(ctx context.Context, p *model.Promise) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	p.ID = xid.New().String()
	p.Status = model.PromiseStatusPending
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO promises (id, user_id, opportunity_key, status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.OpportunityKey,
		string(p.Status),
		string(p.Payload),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating promise: %w", err)
	}
	return nil
}

// ConfirmEmail runs both updates in one transaction. An update that matches
// no row returns sql.ErrNoRows from inside the transaction, which rolls the
// other one back.
func (db *DB) ConfirmEmail(ctx context.Context, userID, promiseID string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	err := dbx.WithTx(ctx, db.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
			now, userID,
		)
		if err != nil {
			return fmt.Errorf("verifying user %s: %w", userID, err)
		}
		if err := dbx.RequireOneRow(res); err != nil {
			return fmt.Errorf("verifying user %s: %w", userID, err)
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE promises SET status = ?, updated_at = ? WHERE id = ?`,
			string(model.PromiseStatusSubmitted), now, promiseID,
		)
		if err != nil {
			return fmt.Errorf("submitting promise %s: %w", promiseID, err)
		}
		if err := dbx.RequireOneRow(res); err != nil {
			return fmt.Errorf("submitting promise %s: %w", promiseID, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite: confirming email: %w", err)
	}
	return nil
}
