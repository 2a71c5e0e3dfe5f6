package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/models"
)

func TestBuildListQuery_AmountOverlap(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	min, max := 50000.0, 200000.0

	query, args := buildListQuery(ListParams{OrgType: models.OrgNonprofit, MinAmount: &min, MaxAmount: &max, Now: now})

	mustContain := []string{
		"deadline_at >= $1",
		"$2 = ANY(eligibility)",
		"amount_max >= $3",
		"amount_min <= $4",
		"ORDER BY deadline_at ASC, id ASC",
	}
	for _, token := range mustContain {
		if !strings.Contains(query, token) {
			t.Fatalf("query missing token %q: %s", token, query)
		}
	}
	assert.Equal(t, []interface{}{now, "nonprofit", 50000.0, 200000.0}, args)
}

func TestBuildListQuery_DeadlineWindowAndLimit(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	days := 30

	query, args := buildListQuery(ListParams{DeadlineWithinDays: &days, Now: now, Limit: 25})

	assert.Contains(t, query, "deadline_at <= $2")
	assert.Contains(t, query, "LIMIT $3")
	require.Len(t, args, 3)
	assert.Equal(t, now.Add(30*24*time.Hour), args[1])
	assert.Equal(t, 25, args[2])
}

func TestBuildListQuery_NoOptionalFilters(t *testing.T) {
	query, args := buildListQuery(ListParams{Now: time.Unix(0, 0)})

	assert.NotContains(t, query, "amount_max >=")
	assert.NotContains(t, query, "LIMIT")
	assert.Len(t, args, 1)
}

func TestMigrationFilesSorted(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_create_opportunities.sql", files[0])
}
