package matcher

import (
	"strings"
	"time"

	"github.com/david/grant-assistant/internal/models"
)

// keywordScore is the fraction of keywords found in the title, description
// or any tag. Keywords are already lower-cased.
func keywordScore(opp models.Opportunity, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	fields := []string{strings.ToLower(opp.Title), strings.ToLower(opp.Description)}
	for _, t := range opp.Tags {
		fields = append(fields, strings.ToLower(t))
	}

	hits := 0
	for _, k := range keywords {
		for _, f := range fields {
			if strings.Contains(f, k) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(keywords))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// timingScore peaks at 1.0 for deadlines 30 to 90 days out and falls
// linearly to 0 at 0 days and at 180 days.
func timingScore(remaining time.Duration) float64 {
	days := remaining.Hours() / 24
	switch {
	case days <= 0:
		return 0
	case days < 30:
		return days / 30
	case days <= 90:
		return 1
	case days < 180:
		return (180 - days) / 90
	default:
		return 0
	}
}

func lowerSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			out[it] = struct{}{}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
