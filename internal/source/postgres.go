package source

import (
	"context"
	"time"

	"github.com/david/grant-assistant/internal/db"
	"github.com/david/grant-assistant/internal/models"
)

// opportunityStore is the slice of db.Store the source needs.
type opportunityStore interface {
	ListOpportunities(ctx context.Context, params db.ListParams) ([]models.Opportunity, error)
	GetOpportunity(ctx context.Context, id string) (models.Opportunity, error)
}

// PostgresSource pushes the cheap hard filters down into SQL.
type PostgresSource struct {
	store opportunityStore
	now   func() time.Time
	limit int
}

func NewPostgresSource(store *db.Store) *PostgresSource {
	return &PostgresSource{store: store, now: time.Now, limit: 500}
}

func (p *PostgresSource) Candidates(ctx context.Context, q models.SearchQuery) ([]models.Opportunity, error) {
	return p.store.ListOpportunities(ctx, db.ListParams{
		OrgType:            q.OrgType,
		MinAmount:          q.MinAmount,
		MaxAmount:          q.MaxAmount,
		DeadlineWithinDays: q.DeadlineWithinDays,
		Now:                p.now().UTC(),
		Limit:              p.limit,
	})
}

func (p *PostgresSource) Get(ctx context.Context, id string) (models.Opportunity, error) {
	return p.store.GetOpportunity(ctx, id)
}
