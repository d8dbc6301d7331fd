package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/catalog"
	"github.com/picketly/api/internal/model"
)

// =========================================================================
// CATALOG
// =========================================================================

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opportunities.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCatalogService_List(t *testing.T) {
	path := writeCatalog(t, `{"opportunities":[
		{"key":"launch-1","categories":["founding","art"]},
		{"key":"launch-2","categories":["music"]}
	]}`)
	svc := NewCatalogService(catalog.NewLoader(path), discardLogger())

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	art, err := svc.List(context.Background(), "art")
	require.NoError(t, err)
	require.Len(t, art, 1)
	assert.Equal(t, "launch-1", art[0]["key"])

	none, err := svc.List(context.Background(), "sculpture")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCatalogService_LoadFailure(t *testing.T) {
	svc := NewCatalogService(catalog.NewLoader(filepath.Join(t.TempDir(), "missing.json")), discardLogger())

	_, err := svc.List(context.Background(), "")
	assertAppError(t, err, apperror.ErrInternal, MsgOpportunitiesFailed)
}

func TestCatalogService_MalformedFile(t *testing.T) {
	svc := NewCatalogService(catalog.NewLoader(writeCatalog(t, `{"opportunities": [`)), discardLogger())

	_, err := svc.List(context.Background(), "")
	assertAppError(t, err, apperror.ErrInternal, MsgOpportunitiesFailed)
}

// =========================================================================
// ARTWORK
// =========================================================================

func seededArtworkStore() *fakeStore {
	s := newFakeStore()
	s.artworks = []model.Artwork{
		{ID: "a1", OpportunityKey: "launch-1", Visibility: model.VisibilityPublic},
		{ID: "a2", OpportunityKey: "launch-1", Visibility: model.VisibilityLeague},
		{ID: "a3", OpportunityKey: "launch-1", Visibility: model.VisibilityPrivate},
		{ID: "a4", OpportunityKey: "launch-2", Visibility: model.VisibilityPublic},
	}
	return s
}

func ids(arts []model.Artwork) []string {
	out := make([]string, 0, len(arts))
	for _, a := range arts {
		out = append(out, a.ID)
	}
	return out
}

func TestArtworkService_Anonymous(t *testing.T) {
	store := seededArtworkStore()
	svc := NewArtworkService(testConfig(), store, discardLogger())

	arts, err := svc.List(context.Background(), "launch-1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids(arts))
	assert.Equal(t, []model.Visibility{model.VisibilityPublic}, store.lastFilter.Visibilities)
}

func TestArtworkService_SignedIn(t *testing.T) {
	store := seededArtworkStore()
	svc := NewArtworkService(testConfig(), store, discardLogger())

	arts, err := svc.List(context.Background(), "launch-1", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, ids(arts))
}

func TestArtworkService_EmptyIsNotNil(t *testing.T) {
	svc := NewArtworkService(testConfig(), newFakeStore(), discardLogger())

	arts, err := svc.List(context.Background(), "nothing-here", false)
	require.NoError(t, err)
	assert.NotNil(t, arts)
	assert.Empty(t, arts)
}

func TestArtworkService_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("pq: syntax error")
	svc := NewArtworkService(testConfig(), store, discardLogger())

	_, err := svc.List(context.Background(), "launch-1", false)
	assertAppError(t, err, apperror.ErrInternal, MsgArtworkFailed)
}

func TestArtworkService_RequiresDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.DB.URL = ""
	svc := NewArtworkService(cfg, newFakeStore(), discardLogger())

	_, err := svc.List(context.Background(), "launch-1", false)
	assert.ErrorIs(t, err, apperror.ErrConfig)

	svc = NewArtworkService(testConfig(), nil, discardLogger())
	_, err = svc.List(context.Background(), "launch-1", false)
	assert.ErrorIs(t, err, apperror.ErrConfig)
}

