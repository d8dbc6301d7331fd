// Package repository declares the persistence contracts used by the service
// layer. Implementations live in subpackages (postgres, sqlite); services
// only ever see these interfaces.
package repository

import (
	"context"

	"github.com/picketly/api/internal/model"
)

// DefaultArtworkLimit caps an artwork listing.
const DefaultArtworkLimit = 30

type UserRepository interface {
	// UpsertUserByEmail inserts a user, or updates FullName when a user with
	// the same email exists. email must already be lowercased.
	UpsertUserByEmail(ctx context.Context, email, fullName string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type PromiseRepository interface {
	// CreatePromise inserts p and fills in its ID and timestamps.
	CreatePromise(ctx context.Context, p *model.Promise) error

	// ConfirmEmail marks the user verified and the promise submitted in one
	// transaction. If either row is missing nothing is changed and an error
	// is returned.
	ConfirmEmail(ctx context.Context, userID, promiseID string) error
}

// ArtworkFilter narrows an artwork listing beyond its opportunity key.
// Listings always require exhibited_by = seller and an accepted or
// acknowledged exhibit status; those are not optional.
type ArtworkFilter struct {
	Visibilities []model.Visibility
	Limit        int
}

// EffectiveLimit returns Limit clamped to (0, DefaultArtworkLimit].
func (f ArtworkFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > DefaultArtworkLimit {
		return DefaultArtworkLimit
	}
	return f.Limit
}

type ArtworkRepository interface {
	ListArtworks(ctx context.Context, opportunityKey string, f ArtworkFilter) ([]model.Artwork, error)
}

// Store is a full backend: every repository plus connection lifecycle.
type Store interface {
	UserRepository
	PromiseRepository
	ArtworkRepository
	Ping(ctx context.Context) error
	Close() error
}
