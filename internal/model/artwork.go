package model

import "time"

// Visibility controls who may see an artwork.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityLeague  Visibility = "league"  // any signed-in viewer
	VisibilityPrivate Visibility = "private" // never served by the API
)

// Exhibit states that make an artwork listable.
const (
	ExhibitedBySeller         = "seller"
	ExhibitStatusAccepted     = "accepted"
	ExhibitStatusAcknowledged = "acknowledged"
)

// Artwork is a read-only content record attached to an opportunity.
// Rows are written by an external process; this service only lists them.
type Artwork struct {
	ID             string     `json:"id"`
	OpportunityKey string     `json:"-"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Visibility     Visibility `json:"visibility"`
	ContentURL     *string    `json:"content_url"`
	ContentText    *string    `json:"content_text"`
	ExhibitedBy    string     `json:"-"`
	ExhibitStatus  string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// VisibleTo returns the visibilities a viewer may list. Anonymous viewers
// see public artwork; any signed-in viewer also sees league artwork.
func VisibleTo(signedIn bool) []Visibility {
	if signedIn {
		return []Visibility{VisibilityPublic, VisibilityLeague}
	}
	return []Visibility{VisibilityPublic}
}
