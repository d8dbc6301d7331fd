package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/repository"
)

// ListArtworks returns the newest listable artworks for an opportunity.
//
// SQLite has no array parameters, so the visibility list is expanded into
// one ? placeholder per value. The values themselves are still bound, never
// interpolated.
func (db *DB) ListArtworks(ctx context.Context, opportunityKey string, f repository.ArtworkFilter) ([]model.Artwork, error) {
	if len(f.Visibilities) == 0 {
		return []model.Artwork{}, nil
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Visibilities)), ", ")
	args := make([]any, 0, len(f.Visibilities)+5)
	args = append(args, opportunityKey)
	for _, v := range f.Visibilities {
		args = append(args, string(v))
	}
	args = append(args,
		model.ExhibitedBySeller,
		model.ExhibitStatusAccepted,
		model.ExhibitStatusAcknowledged,
		f.EffectiveLimit(),
	)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, opportunity_key, type, title, visibility, content_url, content_text,
		        exhibited_by, exhibit_status, created_at
		 FROM artworks
		 WHERE opportunity_key = ?
		   AND visibility IN (`+placeholders+`)
		   AND exhibited_by = ?
		   AND exhibit_status IN (?, ?)
		 ORDER BY created_at DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing artworks: %w", err)
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
			return nil, fmt.Errorf("sqlite: scanning artwork row: %w", err)
		}
		a.Visibility = model.Visibility(visibility)
		artworks = append(artworks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating artworks: %w", err)
	}

	return artworks, nil
}
