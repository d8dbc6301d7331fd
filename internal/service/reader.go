package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/catalog"
	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/repository"
)

const (
	MsgOpportunitiesFailed = "Failed to load opportunities."
	MsgArtworkFailed       = "Failed to load artwork."
)

// OpportunitySource supplies the raw catalog. *catalog.Loader satisfies it.
type OpportunitySource interface {
	Load(ctx context.Context) ([]model.Opportunity, error)
}

var _ OpportunitySource = (*catalog.Loader)(nil)

// CatalogService lists opportunities from the static catalog.
type CatalogService struct {
	source OpportunitySource
	logger *slog.Logger
}

func NewCatalogService(source OpportunitySource, logger *slog.Logger) *CatalogService {
	return &CatalogService{source: source, logger: logger}
}

// List returns every opportunity, or only those tagged with category when
// it is non-empty.
func (s *CatalogService) List(ctx context.Context, category string) ([]model.Opportunity, error) {
	opps, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Error("loading catalog failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/catalog: %w", apperror.Internal(MsgOpportunitiesFailed))
	}
	return catalog.Filter(opps, category), nil
}

// ArtworkService lists the artwork exhibited for an opportunity.
//
// WHO SEES WHAT:
//   - anonymous       → public
//   - any valid session → public + league
//   - private artwork is never served here
type ArtworkService struct {
	cfg    config.Config
	repo   repository.ArtworkRepository
	logger *slog.Logger
}

func NewArtworkService(cfg config.Config, repo repository.ArtworkRepository, logger *slog.Logger) *ArtworkService {
	return &ArtworkService{cfg: cfg, repo: repo, logger: logger}
}

func (s *ArtworkService) List(ctx context.Context, opportunityKey string, signedIn bool) ([]model.Artwork, error) {
	if err := s.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, apperror.ConfigMissing("database", "no connection available")
	}

	arts, err := s.repo.ListArtworks(ctx, opportunityKey, repository.ArtworkFilter{
		Visibilities: model.VisibleTo(signedIn),
	})
	if err != nil {
		s.logger.Error("listing artwork failed",
			slog.String("opportunityKey", opportunityKey),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/artwork: %w", apperror.Internal(MsgArtworkFailed))
	}
	if arts == nil {
		arts = []model.Artwork{}
	}
	return arts, nil
}
