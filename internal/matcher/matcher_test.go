package matcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/models"
	"github.com/david/grant-assistant/internal/source"
)

var testNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

func daysOut(d float64) time.Time {
	return testNow.Add(time.Duration(d * 24 * float64(time.Hour)))
}

func newTestMatcher(t *testing.T, opps ...models.Opportunity) *Matcher {
	t.Helper()
	src, err := source.NewStaticSource(opps)
	require.NoError(t, err)
	return New(src, logger.NewTestLogger(t), WithClock(func() time.Time { return testNow }))
}

func ptr[T any](v T) *T { return &v }

func youthGrant() models.Opportunity {
	return models.Opportunity{
		ID:          "ED-GRANTS-2025-001",
		Title:       "Youth Education and Development Program",
		Funder:      "Department of Education",
		AmountMin:   50000,
		AmountMax:   500000,
		Tags:        []string{"education", "youth"},
		Deadline:    daysOut(60),
		Eligibility: []models.OrgType{models.OrgNonprofit, models.OrgTribal},
		Description: "Supports innovative education programs for underserved youth populations.",
	}
}

func TestSearch_YouthTutoringScenario(t *testing.T) {
	m := newTestMatcher(t, youthGrant())

	matches, err := m.Search(context.Background(), models.SearchQuery{
		Keywords:  []string{"youth", "tutoring"},
		OrgType:   models.OrgNonprofit,
		MinAmount: ptr(50000.0),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	got := matches[0]
	assert.Equal(t, "ED-GRANTS-2025-001", got.Opportunity.ID)
	assert.Equal(t, 1.0, got.Breakdown.Timing)
	assert.Equal(t, 0.5, got.Breakdown.Keyword)
	assert.Equal(t, 0.0, got.Breakdown.Topic)
	assert.InDelta(t, 0.5*0.5+0.2*1.0, got.Score, 1e-9)
}

func TestSearch_HardFilters(t *testing.T) {
	base := youthGrant()

	small := base
	small.ID = "SMALL"
	small.AmountMin, small.AmountMax = 1000, 20000

	big := base
	big.ID = "BIG"
	big.AmountMin, big.AmountMax = 2000000, 5000000

	past := base
	past.ID = "PAST"
	past.Deadline = daysOut(-1)

	universityOnly := base
	universityOnly.ID = "UNI"
	universityOnly.Eligibility = []models.OrgType{models.OrgUniversity}

	far := base
	far.ID = "FAR"
	far.Deadline = daysOut(120)

	m := newTestMatcher(t, base, small, big, past, universityOnly, far)

	matches, err := m.Search(context.Background(), models.SearchQuery{
		Keywords:  []string{"youth"},
		OrgType:   models.OrgNonprofit,
		MinAmount: ptr(50000.0),
		MaxAmount: ptr(1000000.0),
	})
	require.NoError(t, err)

	var ids []string
	for _, mt := range matches {
		ids = append(ids, mt.Opportunity.ID)
	}
	assert.ElementsMatch(t, []string{base.ID, "FAR"}, ids)

	windowed, err := m.Search(context.Background(), models.SearchQuery{
		Keywords:           []string{"youth"},
		OrgType:            models.OrgNonprofit,
		DeadlineWithinDays: ptr(90),
	})
	require.NoError(t, err)
	for _, mt := range windowed {
		assert.NotEqual(t, "FAR", mt.Opportunity.ID)
		assert.NotEqual(t, "PAST", mt.Opportunity.ID)
	}
}

func TestSearch_PastDeadlineExcludedWithoutWindow(t *testing.T) {
	past := youthGrant()
	past.Deadline = daysOut(-0.01)
	m := newTestMatcher(t, past)

	matches, err := m.Search(context.Background(), models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearch_OrderingAndTieBreak(t *testing.T) {
	var opps []models.Opportunity
	for i, tc := range []struct {
		id   string
		days float64
	}{{"C", 60}, {"B", 60}, {"A", 75}, {"D", 10}, {"E", 150}} {
		o := youthGrant()
		o.ID = tc.id
		o.Deadline = daysOut(tc.days)
		o.Title = fmt.Sprintf("Program %d", i)
		opps = append(opps, o)
	}
	m := newTestMatcher(t, opps...)

	matches, err := m.Search(context.Background(), models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit})
	require.NoError(t, err)
	require.Len(t, matches, 5)

	var ids []string
	for i, mt := range matches {
		ids = append(ids, mt.Opportunity.ID)
		assert.GreaterOrEqual(t, mt.Score, 0.0)
		assert.LessOrEqual(t, mt.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, matches[i-1].Score, mt.Score)
		}
	}
	// B, C and A share the top score; B and C share a deadline and break on id.
	// D and E tie on timing (10/30 == 30/90) and break on deadline.
	assert.Equal(t, []string{"B", "C", "A", "D", "E"}, ids)
}

func TestSearch_DefaultAndExplicitMaxResults(t *testing.T) {
	var opps []models.Opportunity
	for i := 0; i < 15; i++ {
		o := youthGrant()
		o.ID = fmt.Sprintf("G-%02d", i)
		opps = append(opps, o)
	}
	m := newTestMatcher(t, opps...)

	matches, err := m.Search(context.Background(), models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit})
	require.NoError(t, err)
	assert.Len(t, matches, DefaultMaxResults)

	matches, err = m.Search(context.Background(), models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit, MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestSearch_TopicJaccard(t *testing.T) {
	m := newTestMatcher(t, youthGrant())

	matches, err := m.Search(context.Background(), models.SearchQuery{
		Keywords:   []string{"education"},
		OrgType:    models.OrgNonprofit,
		TopicAreas: []string{"Youth", "arts"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	// {youth, arts} vs {education, youth}: 1 shared of 3.
	assert.InDelta(t, 1.0/3.0, matches[0].Breakdown.Topic, 1e-9)
}

func TestSearch_InvalidParameters(t *testing.T) {
	m := newTestMatcher(t, youthGrant())

	tests := []struct {
		name string
		q    models.SearchQuery
	}{
		{"empty keywords", models.SearchQuery{OrgType: models.OrgNonprofit}},
		{"blank keywords", models.SearchQuery{Keywords: []string{" ", ""}, OrgType: models.OrgNonprofit}},
		{"missing org type", models.SearchQuery{Keywords: []string{"youth"}}},
		{"unknown org type", models.SearchQuery{Keywords: []string{"youth"}, OrgType: "church"}},
		{"min above max", models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit, MinAmount: ptr(10.0), MaxAmount: ptr(5.0)}},
		{"negative window", models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit, DeadlineWithinDays: ptr(-1)}},
		{"negative max results", models.SearchQuery{Keywords: []string{"youth"}, OrgType: models.OrgNonprofit, MaxResults: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Search(context.Background(), tt.q)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidParameter))
		})
	}
}

func TestTimingScore(t *testing.T) {
	tests := []struct {
		days float64
		want float64
	}{
		{0, 0},
		{15, 0.5},
		{30, 1},
		{60, 1},
		{90, 1},
		{135, 0.5},
		{180, 0},
		{365, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.0f days", tt.days), func(t *testing.T) {
			got := timingScore(time.Duration(tt.days * 24 * float64(time.Hour)))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestKeywordScoreSubstringTolerant(t *testing.T) {
	opp := models.Opportunity{Title: "After-School TUTORING", Tags: []string{"mentorship"}}
	assert.Equal(t, 1.0, keywordScore(opp, []string{"tutor", "mentor"}))
	assert.Equal(t, 0.5, keywordScore(opp, []string{"tutor", "housing"}))
}
