// Package source provides the opportunity records the matcher and composer
// read. Implementations are interchangeable behind OpportunitySource.
package source

import (
	"context"

	"github.com/david/grant-assistant/internal/models"
)

// OpportunitySource returns candidate opportunities for a query. Candidates
// may be a superset of the matches; the matcher applies the hard filters.
type OpportunitySource interface {
	Candidates(ctx context.Context, q models.SearchQuery) ([]models.Opportunity, error)
	// Get returns an apperr NotFound error for unknown ids.
	Get(ctx context.Context, id string) (models.Opportunity, error)
}
