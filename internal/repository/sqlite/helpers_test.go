package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/model"
)

// promiseByID reads a promise back so tests can check what was stored.
func (db *DB) promiseByID(ctx context.Context, id string) (*model.Promise, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var (
		p       model.Promise
		status  string
		payload []byte
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, opportunity_key, status, payload, created_at, updated_at
		 FROM promises WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.UserID, &p.OpportunityKey, &status, &payload, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("promise", id)
		}
		return nil, fmt.Errorf("sqlite: getting promise %s: %w", id, err)
	}
	p.Status = model.PromiseStatus(status)
	p.Payload = payload
	return &p, nil
}
