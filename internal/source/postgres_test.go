package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/db"
	"github.com/david/grant-assistant/internal/models"
)

type recordingStore struct {
	params db.ListParams
}

func (r *recordingStore) ListOpportunities(_ context.Context, params db.ListParams) ([]models.Opportunity, error) {
	r.params = params
	return []models.Opportunity{{ID: "X"}}, nil
}

func (r *recordingStore) GetOpportunity(_ context.Context, id string) (models.Opportunity, error) {
	return models.Opportunity{ID: id}, nil
}

func TestPostgresSourcePushesFiltersDown(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	store := &recordingStore{}
	src := &PostgresSource{store: store, now: func() time.Time { return now }, limit: 50}
	min := 50000.0
	days := 90

	opps, err := src.Candidates(context.Background(), models.SearchQuery{
		Keywords:           []string{"youth"},
		OrgType:            models.OrgTribal,
		MinAmount:          &min,
		DeadlineWithinDays: &days,
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)

	assert.Equal(t, models.OrgTribal, store.params.OrgType)
	assert.Equal(t, &min, store.params.MinAmount)
	assert.Nil(t, store.params.MaxAmount)
	assert.Equal(t, &days, store.params.DeadlineWithinDays)
	assert.Equal(t, now, store.params.Now)
	assert.Equal(t, 50, store.params.Limit)
}
