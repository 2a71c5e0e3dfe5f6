package composer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/david/grant-assistant/internal/models"
)

var printer = message.NewPrinter(language.English)

// splitSentences collapses whitespace and splits text after ., ! or ?.
func splitSentences(text string) []string {
	var out []string
	var cur []string
	for _, w := range strings.Fields(text) {
		cur = append(cur, w)
		if strings.ContainsAny(w[len(w)-1:], ".!?") {
			out = append(out, strings.Join(cur, " "))
			cur = cur[:0]
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

func firstSentence(text string) string {
	s := splitSentences(text)
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// terminate ensures s ends with sentence punctuation.
func terminate(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ",;:- ")
	if s == "" {
		return s
	}
	if strings.ContainsAny(s[len(s)-1:], ".!?") {
		return s
	}
	return s + "."
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// trimValue drops trailing sentence punctuation so a value can be embedded
// mid-sentence.
func trimValue(s string) string {
	return strings.TrimRight(strings.Join(strings.Fields(s), " "), ".!?;:, ")
}

// joinHuman joins items as "a, b and c".
func joinHuman(items []string) string {
	var clean []string
	for _, it := range items {
		if it = trimValue(it); it != "" {
			clean = append(clean, it)
		}
	}
	switch len(clean) {
	case 0:
		return ""
	case 1:
		return clean[0]
	}
	return strings.Join(clean[:len(clean)-1], ", ") + " and " + clean[len(clean)-1]
}

func dollars(v float64) string {
	return printer.Sprintf("$%d", int64(v+0.5))
}

func amountRange(opp models.Opportunity) string {
	switch {
	case opp.AmountMax <= 0:
		return ""
	case opp.AmountMin <= 0:
		return "up to " + dollars(opp.AmountMax)
	case opp.AmountMin == opp.AmountMax:
		return dollars(opp.AmountMax)
	}
	return fmt.Sprintf("%s to %s", dollars(opp.AmountMin), dollars(opp.AmountMax))
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
}

// fields resolves every Slot source for one compose call.
func fields(org models.OrgProfile, opp models.Opportunity, draft models.ProposalDraft) map[string]string {
	f := map[string]string{
		SourceOrgName:        trimValue(org.Name),
		SourceOrgMission:     trimValue(org.Mission),
		SourceOrgType:        strings.ReplaceAll(string(org.OrgType), "_", " "),
		SourceOrgPrograms:    joinHuman(org.Programs),
		SourceOrgPopulation:  trimValue(org.ServicePopulation),
		SourceOrgArea:        trimValue(org.ServiceArea),
		SourceOppTitle:       trimValue(opp.Title),
		SourceOppFunder:      trimValue(opp.Funder),
		SourceOppDescription: trimValue(opp.Description),
		SourceOppTags:        joinHuman(opp.Tags),
		SourceOppAmountRange: amountRange(opp),
	}
	if org.AnnualBudget > 0 {
		f[SourceOrgBudget] = dollars(org.AnnualBudget)
	}
	if !opp.Deadline.IsZero() {
		f[SourceOppDeadline] = opp.Deadline.Format("January 2, 2006")
	}
	for kind, src := range draftSources {
		if c, ok := draft.Sections[kind]; ok {
			f[src] = trimValue(firstSentence(c.Text))
		}
	}
	return f
}

var draftSources = map[models.SectionKind]string{
	models.SectionNeed:       SourceDraftNeed,
	models.SectionGoals:      SourceDraftGoals,
	models.SectionMethods:    SourceDraftMethods,
	models.SectionEvaluation: SourceDraftEvaluation,
	models.SectionBudget:     SourceDraftBudget,
	models.SectionCapacity:   SourceDraftCapacity,
}

// render fills a slot from f. ok is false when the slot has nothing to say.
func render(s Slot, f map[string]string) (string, bool) {
	text := s.Text
	value := f[s.Source]
	if s.Source != SourceStatic && value == "" {
		if s.Fallback == "" {
			return "", false
		}
		text = s.Fallback
	}

	org := f[SourceOrgName]
	if org == "" {
		org = "our organization"
	}
	text = strings.NewReplacer(placeholderValue, value, placeholderOrganization, org).Replace(text)
	text = terminate(capitalize(text))
	return text, text != ""
}
