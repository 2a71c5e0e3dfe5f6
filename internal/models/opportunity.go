package models

import (
	"fmt"
	"strings"
	"time"
)

type OrgType string

const (
	OrgNonprofit       OrgType = "nonprofit"
	OrgTribal          OrgType = "tribal"
	OrgUniversity      OrgType = "university"
	OrgLocalGovernment OrgType = "local_government"
)

var OrgTypes = []OrgType{OrgNonprofit, OrgTribal, OrgUniversity, OrgLocalGovernment}

// ParseOrgType accepts the enumerated org types, case-insensitively.
func ParseOrgType(s string) (OrgType, error) {
	v := OrgType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range OrgTypes {
		if v == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown org type %q", s)
}

// Opportunity is a funding offer. Records are read-only once ingested.
type Opportunity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Funder      string    `json:"funder"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	AmountMin   float64   `json:"amount_min"`
	AmountMax   float64   `json:"amount_max"`
	Tags        []string  `json:"tags"`
	Deadline    time.Time `json:"deadline"`
	Eligibility []OrgType `json:"eligibility"`
	Description string    `json:"description"`
}

func (o Opportunity) EligibleFor(t OrgType) bool {
	for _, e := range o.Eligibility {
		if e == t {
			return true
		}
	}
	return false
}

// OverlapsAmount reports whether [AmountMin, AmountMax] intersects the
// requested range. Nil bounds are open.
func (o Opportunity) OverlapsAmount(min, max *float64) bool {
	if min != nil && o.AmountMax < *min {
		return false
	}
	if max != nil && o.AmountMin > *max {
		return false
	}
	return true
}

type OrgProfile struct {
	Name              string   `json:"name"`
	Mission           string   `json:"mission"`
	OrgType           OrgType  `json:"org_type"`
	AnnualBudget      float64  `json:"annual_budget"`
	Programs          []string `json:"programs"`
	ServicePopulation string   `json:"service_population"`
	ServiceArea       string   `json:"service_area,omitempty"`
}

type SearchQuery struct {
	Keywords           []string `json:"keywords"`
	OrgType            OrgType  `json:"org_type"`
	TopicAreas         []string `json:"topic_areas"`
	MinAmount          *float64 `json:"min_amount,omitempty"`
	MaxAmount          *float64 `json:"max_amount,omitempty"`
	DeadlineWithinDays *int     `json:"deadline_within_days,omitempty"`
	MaxResults         int      `json:"max_results"`
}
