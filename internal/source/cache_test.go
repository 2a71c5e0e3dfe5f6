package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/models"
)

type countingSource struct {
	opps       []models.Opportunity
	gets       int
	candidates int
}

func (c *countingSource) Candidates(_ context.Context, _ models.SearchQuery) ([]models.Opportunity, error) {
	c.candidates++
	return c.opps, nil
}

func (c *countingSource) Get(_ context.Context, id string) (models.Opportunity, error) {
	c.gets++
	for _, o := range c.opps {
		if o.ID == id {
			return o, nil
		}
	}
	return models.Opportunity{}, apperr.NotFound("opportunity", id)
}

func setupCache(t *testing.T, next OpportunitySource) (*CachedSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCachedSource(next, client, time.Minute, logger.NewTestLogger(t)), mr
}

func TestCachedSourceGet(t *testing.T) {
	deadline := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	next := &countingSource{opps: []models.Opportunity{{ID: "A", Title: "Alpha", Deadline: deadline}}}
	cache, _ := setupCache(t, next)
	ctx := context.Background()

	first, err := cache.Get(ctx, "A")
	require.NoError(t, err)
	second, err := cache.Get(ctx, "A")
	require.NoError(t, err)

	assert.Equal(t, 1, next.gets)
	assert.Equal(t, first, second)
	assert.True(t, second.Deadline.Equal(deadline))
}

func TestCachedSourceNotFoundIsNotCached(t *testing.T) {
	next := &countingSource{}
	cache, _ := setupCache(t, next)

	_, err := cache.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = cache.Get(context.Background(), "missing")
	assert.Error(t, err)
	assert.Equal(t, 2, next.gets)
}

func TestCachedSourceCandidatesKeyedByFilters(t *testing.T) {
	next := &countingSource{opps: []models.Opportunity{{ID: "A"}, {ID: "B"}}}
	cache, _ := setupCache(t, next)
	ctx := context.Background()
	min := 1000.0

	_, err := cache.Candidates(ctx, models.SearchQuery{Keywords: []string{"a"}, OrgType: models.OrgNonprofit})
	require.NoError(t, err)
	got, err := cache.Candidates(ctx, models.SearchQuery{Keywords: []string{"b"}, OrgType: models.OrgNonprofit})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, next.candidates)

	_, err = cache.Candidates(ctx, models.SearchQuery{Keywords: []string{"a"}, OrgType: models.OrgNonprofit, MinAmount: &min})
	require.NoError(t, err)
	assert.Equal(t, 2, next.candidates)
}

func TestCachedSourceFallsBackWhenRedisDown(t *testing.T) {
	next := &countingSource{opps: []models.Opportunity{{ID: "A"}}}
	cache, mr := setupCache(t, next)
	mr.Close()

	opp, err := cache.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", opp.ID)
}
