package composer

import "github.com/david/grant-assistant/internal/models"

// Field names a Slot can draw from.
const (
	SourceStatic            = "static"
	SourceOrgName           = "org.name"
	SourceOrgMission        = "org.mission"
	SourceOrgType           = "org.org_type"
	SourceOrgBudget         = "org.annual_budget"
	SourceOrgPrograms       = "org.programs"
	SourceOrgPopulation     = "org.service_population"
	SourceOrgArea           = "org.service_area"
	SourceOppTitle          = "opp.title"
	SourceOppFunder         = "opp.funder"
	SourceOppDescription    = "opp.description"
	SourceOppTags           = "opp.tags"
	SourceOppAmountRange    = "opp.amount_range"
	SourceOppDeadline       = "opp.deadline"
	SourceDraftNeed         = "draft.need"
	SourceDraftGoals        = "draft.goals"
	SourceDraftMethods      = "draft.methods"
	SourceDraftEvaluation   = "draft.evaluation"
	SourceDraftBudget       = "draft.budget"
	SourceDraftCapacity     = "draft.capacity"
	placeholderValue        = "{value}"
	placeholderOrganization = "{org}"
)

// Slot is one clause of a section skeleton. Text may reference {value}, the
// Source field, and {org}, the organization name. When Source resolves to an
// empty value the Fallback is used instead; a slot with neither is skipped.
//
// Slots with an Element are required and never trimmed. Among the rest, the
// highest Priority number is trimmed first.
type Slot struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Source   string `json:"source"`
	Element  string `json:"element,omitempty"`
	Text     string `json:"text"`
	Fallback string `json:"fallback,omitempty"`
}

// Required reports whether the slot covers a required element.
func (s Slot) Required() bool { return s.Element != "" }

// Template is the skeleton for one section kind: the ordered slots that form
// the first draft, and the supporting facts appended in order while the text
// is short of its target band.
type Template struct {
	Slots []Slot `json:"slots"`
	Facts []Slot `json:"facts"`
}

// Templates is the composition table. Each required slot's text and fallback
// mention a keyword the compliance rule book accepts for its element.
var Templates = map[models.SectionKind]Template{
	models.SectionNeed: {
		Slots: []Slot{
			{Name: "problem", Priority: 1, Source: SourceOppDescription, Element: "problem statement",
				Text:     "The problem this project addresses is stated plainly by the funder: {value}.",
				Fallback: "Our community faces a persistent problem that existing services do not reach."},
			{Name: "evidence", Priority: 2, Source: SourceOrgArea, Element: "data/evidence",
				Text:     "Local data from {value} shows demand for services outpacing available support.",
				Fallback: "Local data shows demand for services outpacing available support."},
			{Name: "population", Priority: 3, Source: SourceOrgPopulation, Element: "target population",
				Text:     "The target population is {value}.",
				Fallback: "The target population is the residents our programs already serve."},
			{Name: "firsthand", Priority: 4, Source: SourceOrgName,
				Text: "{value} sees these challenges firsthand through its daily work."},
			{Name: "urgency", Priority: 5, Source: SourceStatic,
				Text: "Without intervention, these challenges will continue to affect community wellbeing."},
			{Name: "funder_fit", Priority: 6, Source: SourceOppFunder,
				Text: "This request responds directly to the priorities of {value}."},
		},
		Facts: []Slot{
			{Name: "demand", Source: SourceStatic,
				Text: "Current resources are insufficient to meet the growing demand for services."},
			{Name: "programs_reach", Source: SourceOrgPrograms,
				Text: "Existing programs, including {value}, already reach part of this population."},
			{Name: "focus_areas", Source: SourceOppTags,
				Text: "The opportunity focuses on {value}, which matches the need described here."},
			{Name: "mission_link", Source: SourceOrgMission,
				Text: "Addressing this need advances our mission: {value}."},
			{Name: "targeted_support", Source: SourceStatic,
				Text: "This project meets the need by providing targeted support to those most affected."},
		},
	},

	models.SectionGoals: {
		Slots: []Slot{
			{Name: "objective", Priority: 1, Source: SourceOrgPrograms, Element: "objectives",
				Text:     "Our primary objective is to expand {value} for the people we serve.",
				Fallback: "Our primary objective is to expand access to services for the people we serve."},
			{Name: "outcome", Priority: 2, Source: SourceOrgPopulation, Element: "outcomes",
				Text:     "The expected outcome is measurable improvement for {value} within the grant period.",
				Fallback: "The expected outcome is measurable improvement for participants within the grant period."},
			{Name: "alignment", Priority: 3, Source: SourceOrgMission, Element: "alignment",
				Text:     "These goals align with our mission: {value}.",
				Fallback: "These goals align with our mission and with the funder's stated priorities."},
			{Name: "capacity_goal", Priority: 4, Source: SourceStatic,
				Text: "A secondary objective is to build lasting capacity to sustain program impact."},
			{Name: "partners_goal", Priority: 5, Source: SourceStatic,
				Text: "We will also establish partnerships with key stakeholders to expand reach."},
			{Name: "program_fit", Priority: 6, Source: SourceOppTitle,
				Text: "Each goal was set with the {value} program in mind."},
		},
		Facts: []Slot{
			{Name: "smart", Source: SourceStatic,
				Text: "Every objective is specific, measurable and time-bound."},
			{Name: "focus_tracking", Source: SourceOppTags,
				Text: "Progress will be tracked against the funder's focus areas: {value}."},
			{Name: "award_fit", Source: SourceOppAmountRange,
				Text: "The objectives are scoped to fit the {value} award range."},
			{Name: "deadline_fit", Source: SourceOppDeadline,
				Text: "Work toward these goals starts once the application closes on {value}."},
		},
	},

	models.SectionMethods: {
		Slots: []Slot{
			{Name: "approach", Priority: 1, Source: SourceOrgName, Element: "approach",
				Text:     "{value} will implement this project through a phased approach.",
				Fallback: "We will implement this project through a phased approach."},
			{Name: "activities", Priority: 2, Source: SourceOrgPrograms, Element: "activities",
				Text:     "Core activities build on {value}.",
				Fallback: "Core activities include workshops, coaching sessions and community outreach."},
			{Name: "timeline", Priority: 3, Source: SourceStatic, Element: "timeline",
				Text: "The timeline runs over twelve months in three phases: planning, launch and full implementation."},
			{Name: "team", Priority: 4, Source: SourceStatic,
				Text: "The first three months assemble the project team and engage key partners."},
			{Name: "data_systems", Priority: 5, Source: SourceStatic,
				Text: "Data collection systems will be in place before service delivery begins."},
			{Name: "evidence_base", Priority: 6, Source: SourceOppTags,
				Text: "The design draws on proven practice in {value}."},
		},
		Facts: []Slot{
			{Name: "launch", Source: SourceStatic,
				Text: "During launch, service delivery begins and early indicators are monitored."},
			{Name: "scale", Source: SourceStatic,
				Text: "Full implementation scales the program to capacity with ongoing participant support."},
			{Name: "area", Source: SourceOrgArea,
				Text: "Activities take place across {value}."},
			{Name: "population", Source: SourceOrgPopulation,
				Text: "Each activity is designed for {value}."},
			{Name: "midcourse", Source: SourceStatic,
				Text: "A mid-course review allows adjustments before the final quarter."},
		},
	},

	models.SectionEvaluation: {
		Slots: []Slot{
			{Name: "metrics", Priority: 1, Source: SourceStatic, Element: "metrics",
				Text: "Outcome measures track participation and improvement against baseline targets."},
			{Name: "methods", Priority: 2, Source: SourceStatic, Element: "methods",
				Text: "Data collection methods include pre and post participant surveys, attendance records and interviews."},
			{Name: "timeline", Priority: 3, Source: SourceStatic, Element: "timeline",
				Text: "The evaluation timeline includes quarterly progress reports and a mid-term review at month six."},
			{Name: "mixed_methods", Priority: 4, Source: SourceStatic,
				Text: "The evaluation combines quantitative and qualitative data."},
			{Name: "use_findings", Priority: 5, Source: SourceOrgName,
				Text: "{value} will use findings to inform continuous improvement."},
		},
		Facts: []Slot{
			{Name: "focus_groups", Source: SourceStatic,
				Text: "Focus groups and partner feedback add context to the quantitative results."},
			{Name: "disaggregate", Source: SourceOrgPopulation,
				Text: "Results will be reported separately for {value}."},
			{Name: "final", Source: SourceStatic,
				Text: "A final evaluation at project completion reports outcomes to the funder."},
			{Name: "reporting", Source: SourceOppFunder,
				Text: "Reports will follow the format requested by {value}."},
		},
	},

	models.SectionBudget: {
		Slots: []Slot{
			{Name: "line_items", Priority: 1, Source: SourceStatic, Element: "line items",
				Text: "Line items cover personnel, program supplies, operations, evaluation and indirect costs."},
			{Name: "justification", Priority: 2, Source: SourceOppAmountRange, Element: "justification",
				Text:     "Each expense is necessary to deliver the proposed activities within the {value} award range.",
				Fallback: "Each expense is necessary to deliver the proposed activities."},
			{Name: "match", Priority: 3, Source: SourceOrgName,
				Text: "{value} will provide matching funds as a sign of commitment to the project."},
			{Name: "stability", Priority: 4, Source: SourceOrgBudget,
				Text: "Our annual budget of {value} demonstrates financial stability."},
			{Name: "benchmark", Priority: 5, Source: SourceStatic,
				Text: "Costs were benchmarked against similar programs to keep the project cost-effective."},
		},
		Facts: []Slot{
			{Name: "personnel", Source: SourceStatic,
				Text: "Personnel costs fund project staff salaries and benefits."},
			{Name: "supplies", Source: SourceStatic,
				Text: "Program supplies provide materials and resources for participants."},
			{Name: "operations", Source: SourceStatic,
				Text: "Operations cover facilities, utilities and insurance."},
			{Name: "evaluation", Source: SourceStatic,
				Text: "Evaluation costs support data collection and analysis."},
			{Name: "indirect", Source: SourceStatic,
				Text: "Indirect costs fund administrative support at 15 percent."},
		},
	},

	models.SectionCapacity: {
		Slots: []Slot{
			{Name: "experience", Priority: 1, Source: SourceOrgName, Element: "experience",
				Text:     "{value} has a proven track record of managing grant-funded projects.",
				Fallback: "Our organization has a proven track record of managing grant-funded projects."},
			{Name: "qualifications", Priority: 2, Source: SourceStatic, Element: "qualifications",
				Text: "An experienced leadership team brings deep expertise in program delivery."},
			{Name: "resources", Priority: 3, Source: SourceOrgArea, Element: "resources",
				Text:     "Established partners across {value} extend our reach.",
				Fallback: "Established community partners extend our reach."},
			{Name: "programs", Priority: 4, Source: SourceOrgPrograms,
				Text: "Current programs include {value}."},
			{Name: "finances", Priority: 5, Source: SourceOrgBudget,
				Text: "An annual budget of {value} reflects sound financial management."},
			{Name: "audits", Priority: 6, Source: SourceStatic,
				Text: "Clean audits and strong internal controls support accountability."},
		},
		Facts: []Slot{
			{Name: "board", Source: SourceStatic,
				Text: "A board of directors with diverse expertise provides oversight."},
			{Name: "milestones", Source: SourceStatic,
				Text: "We consistently meet project milestones and deliverables."},
			{Name: "org_type", Source: SourceOrgType,
				Text: "As a {value} organization, we meet the eligibility terms of this opportunity."},
			{Name: "mission", Source: SourceOrgMission,
				Text: "All of this work serves our mission: {value}."},
		},
	},

	models.SectionAbstract: {
		Slots: []Slot{
			{Name: "summary", Priority: 1, Source: SourceOppTitle, Element: "summary",
				Text:     "This project, led by {org}, seeks support from the {value} program.",
				Fallback: "This project, led by {org}, seeks grant support."},
			{Name: "goal", Priority: 2, Source: SourceDraftGoals, Element: "goals",
				Text:     "Its central goal: {value}",
				Fallback: "Its central goal is to expand services for the community."},
			{Name: "impact", Priority: 3, Source: SourceOrgPopulation, Element: "impact",
				Text:     "The expected impact is measurable benefit for {value}.",
				Fallback: "The expected impact is measurable benefit for participants."},
			{Name: "need", Priority: 4, Source: SourceDraftNeed, Text: "{value}"},
			{Name: "methods", Priority: 5, Source: SourceDraftMethods, Text: "{value}"},
			{Name: "evaluation", Priority: 6, Source: SourceDraftEvaluation, Text: "{value}"},
			{Name: "budget", Priority: 7, Source: SourceDraftBudget, Text: "{value}"},
			{Name: "capacity", Priority: 8, Source: SourceDraftCapacity, Text: "{value}"},
		},
		Facts: []Slot{
			{Name: "mission", Source: SourceOrgMission,
				Text: "{org} is dedicated to {value}."},
			{Name: "request", Source: SourceOppFunder,
				Text: "We request funding from {value} to expand our impact."},
			{Name: "partnerships", Source: SourceStatic,
				Text: "Strong community partnerships position us to achieve measurable outcomes."},
		},
	},
}

// elementSlot finds the slot in t covering element, compared case-insensitively.
func (t Template) elementSlot(element string) (Slot, bool) {
	key := normalizeKey(element)
	for _, s := range t.Slots {
		if s.Required() && normalizeKey(s.Element) == key {
			return s, true
		}
	}
	return Slot{}, false
}
