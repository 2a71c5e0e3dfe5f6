package models

import (
	"strings"
	"time"
)

type SectionKind string

const (
	SectionNeed       SectionKind = "need"
	SectionGoals      SectionKind = "goals"
	SectionMethods    SectionKind = "methods"
	SectionEvaluation SectionKind = "evaluation"
	SectionBudget     SectionKind = "budget"
	SectionCapacity   SectionKind = "capacity"
	SectionAbstract   SectionKind = "abstract"
)

// SectionOrder is the canonical section order. Abstract is always last.
var SectionOrder = []SectionKind{
	SectionNeed,
	SectionGoals,
	SectionMethods,
	SectionEvaluation,
	SectionBudget,
	SectionCapacity,
	SectionAbstract,
}

var sectionTitles = map[SectionKind]string{
	SectionAbstract:   "Executive Summary",
	SectionNeed:       "Statement of Need",
	SectionGoals:      "Goals and Objectives",
	SectionMethods:    "Methods and Activities",
	SectionBudget:     "Budget Narrative",
	SectionEvaluation: "Evaluation Plan",
	SectionCapacity:   "Organizational Capacity",
}

func (k SectionKind) Valid() bool {
	_, ok := sectionTitles[k]
	return ok
}

func (k SectionKind) Title() string {
	return sectionTitles[k]
}

// Index returns the canonical position of k, or -1.
func (k SectionKind) Index() int {
	for i, s := range SectionOrder {
		if s == k {
			return i
		}
	}
	return -1
}

type SectionContent struct {
	Text           string    `json:"text"`
	WordCount      int       `json:"word_count"`
	CharacterCount int       `json:"character_count"`
	GeneratedAt    time.Time `json:"generated_at"`
	InBand         bool      `json:"in_band"`
}

// NewSectionContent fills the derived counts for text.
func NewSectionContent(text string, at time.Time) SectionContent {
	return SectionContent{
		Text:           text,
		WordCount:      CountWords(text),
		CharacterCount: len([]rune(text)),
		GeneratedAt:    at,
	}
}

type ProposalDraft struct {
	GrantID  string                         `json:"grant_id"`
	Sections map[SectionKind]SectionContent `json:"sections"`
}

// Has reports whether the section exists with non-blank text.
func (d ProposalDraft) Has(kind SectionKind) bool {
	c, ok := d.Sections[kind]
	return ok && strings.TrimSpace(c.Text) != ""
}

// Missing lists the kinds not present in the draft, in the given order.
func (d ProposalDraft) Missing(kinds []SectionKind) []SectionKind {
	var out []SectionKind
	for _, k := range kinds {
		if !d.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// With returns a copy of the draft with kind set to content.
func (d ProposalDraft) With(kind SectionKind, content SectionContent) ProposalDraft {
	next := ProposalDraft{GrantID: d.GrantID, Sections: make(map[SectionKind]SectionContent, len(d.Sections)+1)}
	for k, v := range d.Sections {
		next.Sections[k] = v
	}
	next.Sections[kind] = content
	return next
}

// Requirements are the funder rules for one section.
type Requirements struct {
	MaxWords         int      `json:"max_words" yaml:"max_words"`
	MinWords         int      `json:"min_words,omitempty" yaml:"min_words,omitempty"`
	MaxCharacters    int      `json:"max_characters,omitempty" yaml:"max_characters,omitempty"`
	RequiredElements []string `json:"required_elements" yaml:"required_elements"`
	NoURLs           bool     `json:"no_urls,omitempty" yaml:"no_urls,omitempty"`
	NoSpecialChars   bool     `json:"no_special_chars,omitempty" yaml:"no_special_chars,omitempty"`
}

type DraftRequirements struct {
	Sections         map[SectionKind]Requirements `json:"sections"`
	RequiredSections []SectionKind                `json:"required_sections,omitempty"`
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
