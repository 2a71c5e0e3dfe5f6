package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/david/grant-assistant/internal/models"
)

// RawOpportunity is an opportunity as it arrives from a catalog file or feed,
// before validation.
type RawOpportunity struct {
	ID             string   `yaml:"id" json:"id"`
	Title          string   `yaml:"title" json:"title"`
	Funder         string   `yaml:"funder" json:"funder"`
	Source         string   `yaml:"source" json:"source"`
	URL            string   `yaml:"url" json:"url"`
	Amount         string   `yaml:"amount,omitempty" json:"amount,omitempty"`
	AmountMin      *float64 `yaml:"amount_min,omitempty" json:"amount_min,omitempty"`
	AmountMax      *float64 `yaml:"amount_max,omitempty" json:"amount_max,omitempty"`
	Tags           []string `yaml:"tags" json:"tags"`
	Deadline       string   `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	DeadlineInDays *int     `yaml:"deadline_in_days,omitempty" json:"deadline_in_days,omitempty"`
	Eligibility    []string `yaml:"eligibility" json:"eligibility"`
	Description    string   `yaml:"description" json:"description"`
}

var htmlPolicy = bluemonday.UGCPolicy()

// HTMLToText sanitizes HTML and flattens it to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return normalizeSpace(html)
	}
	clean := htmlPolicy.Sanitize(html)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return normalizeSpace(clean)
	}
	doc.Find("br,p,div,li,tr,h1,h2,h3,h4,h5,h6").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return normalizeSpace(doc.Text())
}

// Normalize validates a raw record and converts it into an Opportunity.
// Relative deadlines resolve against now.
func Normalize(raw RawOpportunity, now time.Time) (models.Opportunity, error) {
	opp := models.Opportunity{
		ID:          strings.TrimSpace(raw.ID),
		Title:       normalizeSpace(raw.Title),
		Funder:      normalizeSpace(raw.Funder),
		Source:      strings.TrimSpace(raw.Source),
		URL:         strings.TrimSpace(raw.URL),
		Description: HTMLToText(raw.Description),
		Tags:        mergeUniqueFold(nil, flattenList(raw.Tags)),
	}
	if opp.ID == "" {
		return opp, errors.New("opportunity id is required")
	}
	if opp.Title == "" {
		return opp, fmt.Errorf("opportunity %s: title is required", opp.ID)
	}

	for _, e := range mergeUniqueFold(nil, flattenList(raw.Eligibility)) {
		t, err := models.ParseOrgType(e)
		if err != nil {
			return opp, fmt.Errorf("opportunity %s: %w", opp.ID, err)
		}
		opp.Eligibility = append(opp.Eligibility, t)
	}

	switch {
	case raw.DeadlineInDays != nil:
		opp.Deadline = now.UTC().Add(time.Duration(*raw.DeadlineInDays) * 24 * time.Hour)
	case raw.Deadline != "":
		dt, ok := parseDeadline(raw.Deadline)
		if !ok {
			return opp, fmt.Errorf("opportunity %s: unparseable deadline %q", opp.ID, raw.Deadline)
		}
		opp.Deadline = dt
	default:
		return opp, fmt.Errorf("opportunity %s: deadline is required", opp.ID)
	}

	if raw.Amount != "" {
		min, max, ok := parseAmountRange(raw.Amount)
		if !ok {
			return opp, fmt.Errorf("opportunity %s: unparseable amount %q", opp.ID, raw.Amount)
		}
		opp.AmountMin, opp.AmountMax = min, max
	}
	if raw.AmountMin != nil {
		opp.AmountMin = *raw.AmountMin
	}
	if raw.AmountMax != nil {
		opp.AmountMax = *raw.AmountMax
	}
	if opp.AmountMin < 0 || opp.AmountMax < 0 {
		return opp, fmt.Errorf("opportunity %s: amounts must be non-negative", opp.ID)
	}
	if opp.AmountMin > opp.AmountMax {
		return opp, fmt.Errorf("opportunity %s: amount_min %.0f exceeds amount_max %.0f", opp.ID, opp.AmountMin, opp.AmountMax)
	}

	return opp, nil
}

// parseDeadline accepts RFC 3339 timestamps and bare dates. A bare date means
// the end of that day in UTC.
func parseDeadline(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	for _, format := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(format, raw); err == nil {
			return t, true
		}
	}
	for _, format := range []string{"2006-01-02", "January 2, 2006", "Jan 2, 2006", "01/02/2006"} {
		if t, err := time.Parse(format, raw); err == nil {
			return toEndOfDay(t), true
		}
	}
	return time.Time{}, false
}

func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

var amountRe = regexp.MustCompile(`\b(\d[\d,]*(?:\.\d+)?)\s*([kKmM])?\b`)

// parseAmountRange reads "$50,000 - $500,000", "up to $100K" or "$1.5M".
// A single amount is a ceiling unless the text says it is a minimum.
func parseAmountRange(text string) (float64, float64, bool) {
	lower := strings.ToLower(text)

	var amounts []float64
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "k":
			val *= 1_000
		case "m":
			val *= 1_000_000
		}
		amounts = append(amounts, val)
	}

	switch len(amounts) {
	case 0:
		return 0, 0, false
	case 1:
		if strings.Contains(lower, "at least") || strings.Contains(lower, "minimum") {
			return amounts[0], amounts[0], true
		}
		return 0, amounts[0], true
	}

	min, max := amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}
	return min, max, true
}
