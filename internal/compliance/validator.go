// Package compliance checks proposal drafts against funder requirements.
// Validation is pure: no I/O, and a failing draft is reported, not returned
// as an error.
package compliance

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/metrics"
	"github.com/david/grant-assistant/internal/models"
)

var (
	urlPattern     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	specialPattern = regexp.MustCompile(`[^\p{L}\p{N}\s.,;:!?'"()\-$%&/]`)
)

// ContainsURL reports whether text holds a web address.
func ContainsURL(text string) bool { return urlPattern.MatchString(text) }

// ContainsSpecialChars reports whether text holds characters outside letters,
// digits, whitespace and ordinary punctuation.
func ContainsSpecialChars(text string) bool { return specialPattern.MatchString(text) }

type Validator struct {
	rules *RuleBook
}

func NewValidator(rules *RuleBook) *Validator {
	return &Validator{rules: rules}
}

// Validate checks every present section of draft in canonical order. Only
// malformed requirements are an error.
func (v *Validator) Validate(draft models.ProposalDraft, reqs models.DraftRequirements) (models.ComplianceReport, error) {
	if err := checkRequirements(draft, reqs); err != nil {
		return models.ComplianceReport{}, err
	}

	report := models.ComplianceReport{GrantID: draft.GrantID, Issues: []models.Issue{}}

	var latest time.Time
	var latestKind models.SectionKind
	for _, kind := range models.SectionOrder {
		content, ok := draft.Sections[kind]
		if !ok {
			continue
		}

		req, ok := reqs.Sections[kind]
		if !ok {
			req = v.rules.Requirements(kind)
		}

		if strings.TrimSpace(content.Text) == "" {
			report.Issues = append(report.Issues, models.Issue{
				Section:  kind,
				Severity: models.SeverityError,
				Code:     models.CodeEmptySection,
				Message:  fmt.Sprintf("%s is empty", kind.Title()),
			})
			continue
		}

		report.Issues = append(report.Issues, v.checkSection(kind, content.Text, req)...)

		if at := content.GeneratedAt; !at.IsZero() {
			if !latest.IsZero() && at.Before(latest) {
				report.Issues = append(report.Issues, models.Issue{
					Section:  kind,
					Severity: models.SeverityWarning,
					Code:     models.CodeOrderAdvisory,
					Message:  fmt.Sprintf("%s was drafted before %s, which precedes it", kind.Title(), latestKind.Title()),
				})
			} else {
				latest, latestKind = at, kind
			}
		}
	}

	for _, kind := range reqs.RequiredSections {
		if !draft.Has(kind) {
			if _, present := draft.Sections[kind]; present {
				// Already reported as EMPTY_SECTION.
				continue
			}
			report.Issues = append(report.Issues, models.Issue{
				Section:  kind,
				Severity: models.SeverityError,
				Code:     models.CodeMissingRequiredSection,
				Message:  fmt.Sprintf("required section %s is missing", kind.Title()),
			})
		}
	}

	report.Compliant = len(report.Errors()) == 0
	for _, is := range report.Issues {
		metrics.ComplianceIssues.WithLabelValues(string(is.Code), string(is.Severity)).Inc()
	}
	return report, nil
}

func (v *Validator) checkSection(kind models.SectionKind, text string, req models.Requirements) []models.Issue {
	var issues []models.Issue
	add := func(sev models.Severity, code models.IssueCode, msg string) {
		issues = append(issues, models.Issue{Section: kind, Severity: sev, Code: code, Message: msg})
	}

	words := models.CountWords(text)
	if req.MaxWords > 0 {
		if words > req.MaxWords {
			add(models.SeverityError, models.CodeWordLimitExceeded,
				fmt.Sprintf("%s exceeds word limit (%d/%d words)", kind.Title(), words, req.MaxWords))
		} else if float64(words) < 0.5*float64(req.MaxWords) {
			add(models.SeverityWarning, models.CodeSectionTooShort,
				fmt.Sprintf("%s may be too short (%d/%d words)", kind.Title(), words, req.MaxWords))
		}
	}
	if req.MinWords > 0 && words < req.MinWords {
		add(models.SeverityWarning, models.CodeBelowMinWords,
			fmt.Sprintf("%s is below minimum (%d/%d words)", kind.Title(), words, req.MinWords))
	}
	if chars := len([]rune(text)); req.MaxCharacters > 0 && chars > req.MaxCharacters {
		add(models.SeverityError, models.CodeCharacterLimitExceeded,
			fmt.Sprintf("%s exceeds character limit (%d/%d)", kind.Title(), chars, req.MaxCharacters))
	}

	lower := strings.ToLower(text)
	for _, el := range req.RequiredElements {
		if v.Covers(lower, el) {
			continue
		}
		issues = append(issues, models.Issue{
			Section:  kind,
			Severity: models.SeverityError,
			Code:     models.CodeMissingRequiredElement,
			Message:  fmt.Sprintf("%s may be missing required element: %s", kind.Title(), el),
			Element:  el,
		})
	}

	if req.NoURLs && ContainsURL(text) {
		add(models.SeverityWarning, models.CodeURLsNotAllowed,
			fmt.Sprintf("%s contains URLs, which this funder does not allow", kind.Title()))
	}
	if req.NoSpecialChars && ContainsSpecialChars(text) {
		add(models.SeverityWarning, models.CodeSpecialCharacters,
			fmt.Sprintf("%s contains special characters", kind.Title()))
	}
	return issues
}

// Covers reports whether lowerText mentions any keyword of element.
func (v *Validator) Covers(lowerText, element string) bool {
	for _, kw := range v.rules.Keywords(element) {
		if kw != "" && strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

func checkRequirements(draft models.ProposalDraft, reqs models.DraftRequirements) error {
	for kind := range draft.Sections {
		if !kind.Valid() {
			return apperr.InvalidParameter("unknown section kind %q", kind)
		}
	}
	for kind, req := range reqs.Sections {
		if !kind.Valid() {
			return apperr.InvalidParameter("unknown section kind %q in requirements", kind)
		}
		if req.MaxWords < 0 || req.MinWords < 0 || req.MaxCharacters < 0 {
			return apperr.InvalidParameter("%s limits must be non-negative", kind)
		}
	}
	for _, kind := range reqs.RequiredSections {
		if !kind.Valid() {
			return apperr.InvalidParameter("unknown required section %q", kind)
		}
	}
	return nil
}

// Validate runs a validator over the default rule book.
func Validate(draft models.ProposalDraft, reqs models.DraftRequirements) (models.ComplianceReport, error) {
	rules, err := DefaultRuleBook()
	if err != nil {
		return models.ComplianceReport{}, err
	}
	return NewValidator(rules).Validate(draft, reqs)
}
