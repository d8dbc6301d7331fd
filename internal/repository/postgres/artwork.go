package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/repository"
)

// ListArtworks returns the newest listable artworks for an opportunity.
// Visibilities are bound as individual parameters ($2, $3, ...).
func (db *DB) ListArtworks(ctx context.Context, opportunityKey string, f repository.ArtworkFilter) ([]model.Artwork, error) {
	if len(f.Visibilities) == 0 {
		return []model.Artwork{}, nil
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	args := []any{opportunityKey}
	marks := make([]string, len(f.Visibilities))
	for i, v := range f.Visibilities {
		args = append(args, string(v))
		marks[i] = "$" + strconv.Itoa(len(args))
	}
	n := len(args)
	args = append(args,
		model.ExhibitedBySeller,
		model.ExhibitStatusAccepted,
		model.ExhibitStatusAcknowledged,
		f.EffectiveLimit(),
	)

	query := fmt.Sprintf(`SELECT id, opportunity_key, type, title, visibility, content_url, content_text,
		       exhibited_by, exhibit_status, created_at
		FROM artworks
		WHERE opportunity_key = $1
		  AND visibility IN (%s)
		  AND exhibited_by = $%d
		  AND exhibit_status IN ($%d, $%d)
		ORDER BY created_at DESC
		LIMIT $%d`,
		strings.Join(marks, ", "), n+1, n+2, n+3, n+4)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing artworks: %w", err)
	}
	defer rows.Close()

	artworks := make([]model.Artwork, 0, f.EffectiveLimit())
	for rows.Next() {
		var (
			a          model.Artwork
			visibility string
		)
		if err := rows.Scan(
			&a.ID, &a.OpportunityKey, &a.Type, &a.Title, &visibility,
			&a.ContentURL, &a.ContentText, &a.ExhibitedBy, &a.ExhibitStatus, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning artwork row: %w", err)
		}
		a.Visibility = model.Visibility(visibility)
		artworks = append(artworks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating artworks: %w", err)
	}
	return artworks, nil
}
