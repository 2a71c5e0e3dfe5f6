package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/models"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "  Supports   rural  projects. ", "Supports rural projects."},
		{"paragraphs separated", "<p>First.</p><p>Second.</p>", "First. Second."},
		{"script dropped", "<p>Safe</p><script>alert('x')</script>", "Safe"},
		{"entities decoded", "Arts &amp; culture", "Arts & culture"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}

func TestParseAmountRange(t *testing.T) {
	tests := []struct {
		in       string
		min, max float64
		ok       bool
	}{
		{"$50,000 - $500,000", 50000, 500000, true},
		{"up to $100K", 0, 100000, true},
		{"at least $25,000", 25000, 25000, true},
		{"$1.5M", 0, 1500000, true},
		{"FY2025 awards up to $40,000", 0, 40000, true},
		{"varies", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			min, max, ok := parseAmountRange(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.min, min)
			assert.Equal(t, tt.max, max)
		})
	}
}

func TestParseDeadline(t *testing.T) {
	dt, ok := parseDeadline("2026-03-15")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), dt)

	dt, ok = parseDeadline("2026-03-15T10:00:00-05:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC), dt)

	_, ok = parseDeadline("next spring")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	days := 60

	opp, err := Normalize(RawOpportunity{
		ID:             " ED-1 ",
		Title:          "Youth   Tutoring",
		Amount:         "$50,000 - $500,000",
		DeadlineInDays: &days,
		Eligibility:    []string{"Nonprofit", "nonprofit", "tribal"},
		Tags:           []string{"Education", "youth, EDUCATION", "- mentoring"},
		Description:    "<b>Tutoring</b> for youth",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "ED-1", opp.ID)
	assert.Equal(t, "Youth Tutoring", opp.Title)
	assert.Equal(t, []models.OrgType{models.OrgNonprofit, models.OrgTribal}, opp.Eligibility)
	assert.Equal(t, []string{"education", "youth", "mentoring"}, opp.Tags)
	assert.Equal(t, now.Add(60*24*time.Hour), opp.Deadline)
	assert.Equal(t, 50000.0, opp.AmountMin)
	assert.Equal(t, 500000.0, opp.AmountMax)
	assert.Equal(t, "Tutoring for youth", opp.Description)
}

func TestNormalizeRejects(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	lo, hi := 500.0, 100.0

	tests := []struct {
		name string
		raw  RawOpportunity
	}{
		{"missing id", RawOpportunity{Title: "x", Deadline: "2026-03-01"}},
		{"missing deadline", RawOpportunity{ID: "a", Title: "x"}},
		{"bad deadline", RawOpportunity{ID: "a", Title: "x", Deadline: "soon"}},
		{"unknown org type", RawOpportunity{ID: "a", Title: "x", Deadline: "2026-03-01", Eligibility: []string{"church"}}},
		{"inverted amounts", RawOpportunity{ID: "a", Title: "x", Deadline: "2026-03-01", AmountMin: &lo, AmountMax: &hi}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, now)
			assert.Error(t, err)
		})
	}
}
