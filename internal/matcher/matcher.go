// Package matcher ranks opportunities against a search query and an
// organization type.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/metrics"
	"github.com/david/grant-assistant/internal/models"
	"github.com/david/grant-assistant/internal/source"
)

const (
	DefaultMaxResults = 10

	keywordWeight = 0.5
	topicWeight   = 0.3
	timingWeight  = 0.2
)

type Breakdown struct {
	Keyword float64 `json:"keyword"`
	Topic   float64 `json:"topic"`
	Timing  float64 `json:"timing"`
}

type Match struct {
	Opportunity models.Opportunity `json:"opportunity"`
	Score       float64            `json:"score"`
	Breakdown   Breakdown          `json:"breakdown"`
}

type Matcher struct {
	source source.OpportunitySource
	now    func() time.Time
	log    logger.Logger
}

type Option func(*Matcher)

// WithClock overrides the time source used for deadline filtering and timing.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

func New(src source.OpportunitySource, log logger.Logger, opts ...Option) *Matcher {
	m := &Matcher{source: src, now: time.Now, log: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Search filters the source's candidates on eligibility, amount overlap and
// deadline window, then ranks the survivors.
func (m *Matcher) Search(ctx context.Context, q models.SearchQuery) ([]Match, error) {
	q, keywords, err := normalizeQuery(q)
	if err != nil {
		metrics.SearchRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}

	candidates, err := m.source.Candidates(ctx, q)
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	now := m.now()
	topics := lowerSet(q.TopicAreas)
	var matches []Match
	for _, opp := range candidates {
		if !passesFilters(opp, q, now) {
			continue
		}
		b := Breakdown{
			Keyword: keywordScore(opp, keywords),
			Topic:   jaccard(topics, lowerSet(opp.Tags)),
			Timing:  timingScore(opp.Deadline.Sub(now)),
		}
		matches = append(matches, Match{
			Opportunity: opp,
			Score:       clamp01(keywordWeight*b.Keyword + topicWeight*b.Topic + timingWeight*b.Timing),
			Breakdown:   b,
		})
	}

	sortMatches(matches)
	total := len(matches)
	if len(matches) > q.MaxResults {
		matches = matches[:q.MaxResults]
	}

	metrics.SearchRequests.WithLabelValues("ok").Inc()
	metrics.SearchResults.Observe(float64(len(matches)))
	m.log.Debug("grant search ranked", map[string]interface{}{
		"candidates": len(candidates),
		"matched":    total,
		"returned":   len(matches),
		"org_type":   string(q.OrgType),
	})
	return matches, nil
}

// normalizeQuery validates q and returns it with defaults applied, plus the
// de-duplicated lower-cased keywords.
func normalizeQuery(q models.SearchQuery) (models.SearchQuery, []string, error) {
	var keywords []string
	seen := map[string]bool{}
	for _, k := range q.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
	}
	if len(keywords) == 0 {
		return q, nil, apperr.InvalidParameter("keywords must contain at least one non-blank entry")
	}

	if q.OrgType == "" {
		return q, nil, apperr.InvalidParameter("org_type is required")
	}
	orgType, err := models.ParseOrgType(string(q.OrgType))
	if err != nil {
		return q, nil, apperr.InvalidParameter("%v", err)
	}
	q.OrgType = orgType

	if q.MinAmount != nil && *q.MinAmount < 0 {
		return q, nil, apperr.InvalidParameter("min_amount must be non-negative")
	}
	if q.MaxAmount != nil && *q.MaxAmount < 0 {
		return q, nil, apperr.InvalidParameter("max_amount must be non-negative")
	}
	if q.MinAmount != nil && q.MaxAmount != nil && *q.MinAmount > *q.MaxAmount {
		return q, nil, apperr.InvalidParameter("min_amount %.0f exceeds max_amount %.0f", *q.MinAmount, *q.MaxAmount)
	}
	if q.DeadlineWithinDays != nil && *q.DeadlineWithinDays < 0 {
		return q, nil, apperr.InvalidParameter("deadline_within_days must be non-negative")
	}
	if q.MaxResults < 0 {
		return q, nil, apperr.InvalidParameter("max_results must be non-negative")
	}
	if q.MaxResults == 0 {
		q.MaxResults = DefaultMaxResults
	}
	return q, keywords, nil
}

func passesFilters(opp models.Opportunity, q models.SearchQuery, now time.Time) bool {
	if !opp.EligibleFor(q.OrgType) {
		return false
	}
	if !opp.OverlapsAmount(q.MinAmount, q.MaxAmount) {
		return false
	}
	remaining := opp.Deadline.Sub(now)
	if remaining < 0 {
		return false
	}
	if q.DeadlineWithinDays != nil && remaining > time.Duration(*q.DeadlineWithinDays)*24*time.Hour {
		return false
	}
	return true
}

// sortMatches orders by score descending, then earlier deadline, then id.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Opportunity.Deadline.Equal(b.Opportunity.Deadline) {
			return a.Opportunity.Deadline.Before(b.Opportunity.Deadline)
		}
		return a.Opportunity.ID < b.Opportunity.ID
	})
}
