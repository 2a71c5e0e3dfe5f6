// Package composer drafts proposal sections from an inspectable template
// table and fits them to a word limit with a bounded trim/expand loop.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/compliance"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/metrics"
	"github.com/david/grant-assistant/internal/models"
	"github.com/david/grant-assistant/internal/source"
)

const DefaultMaxIterations = 64

type Action string

const (
	ActionGenerate Action = "generate"
	ActionRefine   Action = "refine"
)

// Feedback drives a refine: issues from a compliance report and free-text
// instruction lines. "remove: <phrase>" drops sentences containing the
// phrase and "add: <text>" appends text.
type Feedback struct {
	Issues      []models.Issue `json:"issues,omitempty"`
	Instruction string         `json:"instruction,omitempty"`
}

type ComposeRequest struct {
	GrantID         string               `json:"grant_id"`
	Section         models.SectionKind   `json:"section"`
	Org             models.OrgProfile    `json:"org_profile"`
	Requirements    *models.Requirements `json:"requirements,omitempty"`
	Action          Action               `json:"action"`
	ExistingContent string               `json:"existing_content,omitempty"`
	Feedback        Feedback             `json:"feedback"`
	Draft           models.ProposalDraft `json:"draft"`
}

type ComposeResult struct {
	Section     models.SectionKind    `json:"section"`
	Content     models.SectionContent `json:"content"`
	Iterations  int                   `json:"iterations"`
	Issues      []models.Issue        `json:"issues"`
	Suggestions []string              `json:"suggestions"`
}

// abstractPrerequisites must all be present before an abstract is composed.
var abstractPrerequisites = []models.SectionKind{
	models.SectionNeed,
	models.SectionGoals,
	models.SectionMethods,
	models.SectionEvaluation,
	models.SectionBudget,
	models.SectionCapacity,
}

type Composer struct {
	source        source.OpportunitySource
	rules         *compliance.RuleBook
	validator     *compliance.Validator
	templates     map[models.SectionKind]Template
	maxIterations int
	now           func() time.Time
	log           logger.Logger
	locks         *keyedMutex
}

type Option func(*Composer)

func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// WithMaxIterations sets the trim/expand ceiling; values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

func New(src source.OpportunitySource, rules *compliance.RuleBook, log logger.Logger, opts ...Option) *Composer {
	c := &Composer{
		source:        src,
		rules:         rules,
		validator:     compliance.NewValidator(rules),
		templates:     Templates,
		maxIterations: DefaultMaxIterations,
		now:           time.Now,
		log:           log,
		locks:         newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose generates or refines one section. Calls for the same grant and
// section run one at a time; others proceed in parallel. Falling outside the
// target word band is reported through Content.InBand, never as an error.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) (ComposeResult, error) {
	reqs, err := c.checkRequest(&req)
	if err != nil {
		return ComposeResult{}, err
	}

	unlock := c.locks.Lock(req.GrantID + "/" + string(req.Section))
	defer unlock()

	if req.Section == models.SectionAbstract {
		if missing := req.Draft.Missing(abstractPrerequisites); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, k := range missing {
				names[i] = string(k)
			}
			return ComposeResult{}, apperr.OrderingViolation(string(models.SectionAbstract), names)
		}
	}

	if err := ctx.Err(); err != nil {
		return ComposeResult{}, err
	}
	opp, err := c.source.Get(ctx, req.GrantID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ComposeResult{}, err
		}
		return ComposeResult{}, fmt.Errorf("loading opportunity %s: %w", req.GrantID, err)
	}

	tmpl := c.templates[req.Section]
	f := fields(req.Org, opp, req.Draft)

	var clauses, facts []clause
	if req.Action == ActionRefine {
		clauses = c.refineClauses(req, tmpl, f)
	} else {
		clauses = c.generateClauses(tmpl, f, reqs)
	}
	for _, s := range tmpl.Facts {
		if text, ok := render(s, f); ok && !containsClause(clauses, text) {
			facts = append(facts, newClause(text, s.Name, factPriority, true))
		}
	}

	clauses, iterations := c.fit(clauses, facts, reqs.MaxWords)

	content := models.NewSectionContent(joinClauses(clauses), c.now().UTC())
	content.InBand = inBand(content.WordCount, reqs.MaxWords)

	report, err := c.validator.Validate(
		models.ProposalDraft{GrantID: req.GrantID, Sections: map[models.SectionKind]models.SectionContent{req.Section: content}},
		models.DraftRequirements{Sections: map[models.SectionKind]models.Requirements{req.Section: reqs}},
	)
	if err != nil {
		return ComposeResult{}, err
	}

	metrics.ComposeTotal.WithLabelValues(string(req.Section), string(req.Action), strconv.FormatBool(content.InBand)).Inc()
	metrics.ComposeIterations.WithLabelValues(string(req.Section)).Observe(float64(iterations))
	c.log.Info("section composed", map[string]interface{}{
		"grant_id":   req.GrantID,
		"section":    string(req.Section),
		"action":     string(req.Action),
		"words":      content.WordCount,
		"max_words":  reqs.MaxWords,
		"in_band":    content.InBand,
		"iterations": iterations,
	})

	return ComposeResult{
		Section:     req.Section,
		Content:     content,
		Iterations:  iterations,
		Issues:      report.Issues,
		Suggestions: suggestions(req.Section, content.Text, report.Issues),
	}, nil
}

// checkRequest validates req in place and resolves its requirements.
func (c *Composer) checkRequest(req *ComposeRequest) (models.Requirements, error) {
	req.GrantID = strings.TrimSpace(req.GrantID)
	if req.GrantID == "" {
		return models.Requirements{}, apperr.InvalidParameter("grant_id is required")
	}
	if !req.Section.Valid() {
		return models.Requirements{}, apperr.InvalidParameter("unknown section %q", req.Section)
	}
	if _, ok := c.templates[req.Section]; !ok {
		return models.Requirements{}, apperr.InvalidParameter("no template for section %q", req.Section)
	}
	switch req.Action {
	case "":
		req.Action = ActionGenerate
	case ActionGenerate, ActionRefine:
	default:
		return models.Requirements{}, apperr.InvalidParameter("unknown action %q: use generate or refine", req.Action)
	}
	if req.Action == ActionRefine && strings.TrimSpace(req.ExistingContent) == "" {
		return models.Requirements{}, apperr.InvalidParameter("existing_content is required to refine")
	}
	if req.Draft.GrantID != "" && req.Draft.GrantID != req.GrantID {
		return models.Requirements{}, apperr.InvalidParameter("draft belongs to %q, not %q", req.Draft.GrantID, req.GrantID)
	}

	var reqs models.Requirements
	if req.Requirements != nil {
		reqs = *req.Requirements
	} else {
		reqs = c.rules.Requirements(req.Section)
	}
	if reqs.MaxWords < 0 || reqs.MinWords < 0 || reqs.MaxCharacters < 0 {
		return models.Requirements{}, apperr.InvalidParameter("word and character limits must be non-negative")
	}
	return reqs, nil
}

func (c *Composer) generateClauses(tmpl Template, f map[string]string, reqs models.Requirements) []clause {
	var clauses []clause
	for _, s := range tmpl.Slots {
		text, ok := render(s, f)
		if !ok {
			continue
		}
		cl := newClause(text, s.Name, s.Priority, !s.Required())
		cl.element = s.Element
		clauses = append(clauses, cl)
	}

	for _, el := range reqs.RequiredElements {
		if _, ok := tmpl.elementSlot(el); ok {
			continue
		}
		if c.validator.Covers(strings.ToLower(joinClauses(clauses)), el) {
			continue
		}
		clauses = append(clauses, elementClauseFor(elementClause(el), "element", el))
	}
	return clauses
}

// refineClauses seeds the loop with the sentences of the existing content.
// Unflagged sentences are kept verbatim and may only be trimmed when the
// feedback reports the word limit as exceeded.
func (c *Composer) refineClauses(req ComposeRequest, tmpl Template, f map[string]string) []clause {
	codes := map[models.IssueCode]bool{}
	var missing []string
	for _, is := range req.Feedback.Issues {
		if is.Section != "" && is.Section != req.Section {
			continue
		}
		codes[is.Code] = true
		if is.Code == models.CodeMissingRequiredElement && is.Element != "" {
			missing = append(missing, is.Element)
		}
	}
	removes, adds := parseInstruction(req.Feedback.Instruction)
	trimmable := codes[models.CodeWordLimitExceeded]

	var clauses []clause
	for i, s := range splitSentences(req.ExistingContent) {
		if flagged(s, codes, removes) {
			continue
		}
		cl := newClause(s, "existing", refinePriority+i, trimmable)
		cl.fixed = !trimmable
		clauses = append(clauses, cl)
	}

	for _, el := range missing {
		text := elementClause(el)
		if s, ok := tmpl.elementSlot(el); ok {
			if rendered, ok := render(s, f); ok {
				text = rendered
			}
		}
		if !containsClause(clauses, text) {
			clauses = append(clauses, elementClauseFor(text, "element", el))
		}
	}
	for _, a := range adds {
		clauses = append(clauses, newClause(terminate(a), "instruction", 0, false))
	}
	return clauses
}

func flagged(sentence string, codes map[models.IssueCode]bool, removes []string) bool {
	if codes[models.CodeURLsNotAllowed] && compliance.ContainsURL(sentence) {
		return true
	}
	if codes[models.CodeSpecialCharacters] && compliance.ContainsSpecialChars(sentence) {
		return true
	}
	lower := strings.ToLower(sentence)
	for _, phrase := range removes {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func parseInstruction(instruction string) (removes, adds []string) {
	for _, line := range strings.Split(instruction, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "remove:"):
			if p := strings.TrimSpace(lower[len("remove:"):]); p != "" {
				removes = append(removes, p)
			}
		case strings.HasPrefix(lower, "add:"):
			if a := strings.TrimSpace(line[len("add:"):]); a != "" {
				adds = append(adds, a)
			}
		}
	}
	return removes, adds
}

func elementClause(element string) string {
	return terminate("This proposal also addresses " + normalizeKey(element))
}

func suggestions(kind models.SectionKind, text string, issues []models.Issue) []string {
	out := []string{}
	var missing []string
	for _, is := range issues {
		switch is.Code {
		case models.CodeWordLimitExceeded:
			out = append(out, "Content exceeds maximum word count. Consider condensing.")
		case models.CodeMissingRequiredElement:
			missing = append(missing, is.Element)
		}
	}
	if len(missing) > 0 {
		out = append(out, "Add required elements: "+strings.Join(missing, ", "))
	}

	lower := strings.ToLower(text)
	switch kind {
	case models.SectionAbstract:
		if models.CountWords(text) < 100 {
			out = append(out, "Abstract seems short. Ensure it covers key project elements.")
		}
	case models.SectionBudget:
		if !strings.Contains(text, "$") {
			out = append(out, "Include specific dollar amounts in budget section.")
		}
	case models.SectionEvaluation:
		if !strings.Contains(lower, "measure") && !strings.Contains(lower, "metric") && !strings.Contains(lower, "data") {
			out = append(out, "Strengthen evaluation section with specific metrics.")
		}
	}
	return out
}
