package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/repository"
)

type artworkRow struct {
	id, key, visibility, exhibitedBy, exhibitStatus string
	createdAt                                      time.Time
}

func insertArtworks(t *testing.T, db *DB, rows ...artworkRow) {
	t.Helper()
	for _, r := range rows {
		_, err := db.conn.Exec(
			`INSERT INTO artworks (id, opportunity_key, type, title, visibility, content_url,
			                       exhibited_by, exhibit_status, created_at)
			 VALUES (?, ?, 'image', ?, ?, ?, ?, ?, ?)`,
			r.id, r.key, "Title "+r.id, r.visibility, "https://cdn.example/"+r.id,
			r.exhibitedBy, r.exhibitStatus, r.createdAt,
		)
		if err != nil {
			t.Fatalf("inserting artwork %s: %v", r.id, err)
		}
	}
}

func ids(artworks []model.Artwork) []string {
	out := make([]string, len(artworks))
	for i, a := range artworks {
		out[i] = a.ID
	}
	return out
}

func TestListArtworks_Visibility(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertArtworks(t, db,
		artworkRow{"pub", "k", "public", "seller", "accepted", base.Add(3 * time.Hour)},
		artworkRow{"lea", "k", "league", "seller", "acknowledged", base.Add(2 * time.Hour)},
		artworkRow{"pri", "k", "private", "seller", "accepted", base.Add(1 * time.Hour)},
	)

	tests := []struct {
		name     string
		signedIn bool
		want     []string
	}{
		{"anonymous sees public only", false, []string{"pub"}},
		{"signed in sees public and league", true, []string{"pub", "lea"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListArtworks(context.Background(), "k",
				repository.ArtworkFilter{Visibilities: model.VisibleTo(tt.signedIn)})
			if err != nil {
				t.Fatalf("ListArtworks() error = %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("got %v, want %v", gotIDs, tt.want)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("got %v, want %v", gotIDs, tt.want)
				}
			}
		})
	}
}

func TestListArtworks_ExhibitFilters(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	insertArtworks(t, db,
		artworkRow{"ok", "k", "public", "seller", "accepted", now},
		artworkRow{"buyer", "k", "public", "buyer", "accepted", now},
		artworkRow{"pending", "k", "public", "seller", "pending", now},
		artworkRow{"other-key", "x", "public", "seller", "accepted", now},
	)

	got, err := db.ListArtworks(context.Background(), "k",
		repository.ArtworkFilter{Visibilities: model.VisibleTo(true)})
	if err != nil {
		t.Fatalf("ListArtworks() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "ok" {
		t.Errorf("got %v, want [ok]", ids(got))
	}
	if got[0].ContentURL == nil || *got[0].ContentURL != "https://cdn.example/ok" {
		t.Errorf("ContentURL = %v", got[0].ContentURL)
	}
	if got[0].ContentText != nil {
		t.Errorf("ContentText = %v, want nil", *got[0].ContentText)
	}
}

func TestListArtworks_NewestFirstAndCapped(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 35; i++ {
		insertArtworks(t, db, artworkRow{
			id: time.Duration(i).String(), key: "k", visibility: "public",
			exhibitedBy: "seller", exhibitStatus: "accepted",
			createdAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	got, err := db.ListArtworks(context.Background(), "k",
		repository.ArtworkFilter{Visibilities: model.VisibleTo(false)})
	if err != nil {
		t.Fatalf("ListArtworks() error = %v", err)
	}
	if len(got) != repository.DefaultArtworkLimit {
		t.Fatalf("len = %d, want %d", len(got), repository.DefaultArtworkLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatalf("not newest first at %d", i)
		}
	}
}

func TestListArtworks_NoVisibilities(t *testing.T) {
	db := newTestDB(t)

	got, err := db.ListArtworks(context.Background(), "k", repository.ArtworkFilter{})
	if err != nil {
		t.Fatalf("ListArtworks() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}
