package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/model"
)

// OpportunityLister is satisfied by *service.CatalogService.
type OpportunityLister interface {
	List(ctx context.Context, category string) ([]model.Opportunity, error)
}

// ArtworkLister is satisfied by *service.ArtworkService.
type ArtworkLister interface {
	List(ctx context.Context, opportunityKey string, signedIn bool) ([]model.Artwork, error)
}

// OpportunityHandler serves the read-only catalog routes.
type OpportunityHandler struct {
	opportunities OpportunityLister
	artworks      ArtworkLister
	logger        *slog.Logger
}

func NewOpportunityHandler(opportunities OpportunityLister, artworks ArtworkLister, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunities: opportunities,
		artworks:      artworks,
		logger:        logger,
	}
}

type opportunitiesResponse struct {
	Opportunities []model.Opportunity `json:"opportunities"`
}

// HandleList returns the catalog, optionally narrowed to one category.
//
// HTTP: GET /api/opportunities?category=<tag>
//
// Records are passed through exactly as they appear in the catalog file.
func (h *OpportunityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opps, err := h.opportunities.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opportunitiesResponse{Opportunities: opps})
}

type artworksResponse struct {
	Artworks []model.Artwork `json:"artworks"`
}

// HandleArtwork lists the artwork exhibited for one opportunity. A valid
// session cookie (see auth.OptionalSession) widens the result to league
// artwork; without one only public artwork is returned.
//
// HTTP: GET /api/opportunities/{key}/artwork
func (h *OpportunityHandler) HandleArtwork(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	_, signedIn := auth.ViewerFromContext(r.Context())

	arts, err := h.artworks.List(r.Context(), key, signedIn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artworksResponse{Artworks: arts})
}
