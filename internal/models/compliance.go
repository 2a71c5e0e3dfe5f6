package models

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type IssueCode string

const (
	CodeWordLimitExceeded      IssueCode = "WORD_LIMIT_EXCEEDED"
	CodeSectionTooShort        IssueCode = "SECTION_TOO_SHORT"
	CodeBelowMinWords          IssueCode = "BELOW_MIN_WORDS"
	CodeCharacterLimitExceeded IssueCode = "CHARACTER_LIMIT_EXCEEDED"
	CodeMissingRequiredElement IssueCode = "MISSING_REQUIRED_ELEMENT"
	CodeOrderAdvisory          IssueCode = "ORDER_ADVISORY"
	CodeEmptySection           IssueCode = "EMPTY_SECTION"
	CodeURLsNotAllowed         IssueCode = "URLS_NOT_ALLOWED"
	CodeSpecialCharacters      IssueCode = "SPECIAL_CHARACTERS"
	CodeMissingRequiredSection IssueCode = "MISSING_REQUIRED_SECTION"
)

type Issue struct {
	Section  SectionKind `json:"section_kind"`
	Severity Severity    `json:"severity"`
	Code     IssueCode   `json:"code"`
	Message  string      `json:"message"`
	// Element is set for MISSING_REQUIRED_ELEMENT.
	Element string `json:"element,omitempty"`
}

type ComplianceReport struct {
	GrantID   string  `json:"grant_id"`
	Issues    []Issue `json:"issues"`
	Compliant bool    `json:"compliant"`
}

// ForSection returns the issues raised against kind.
func (r ComplianceReport) ForSection(kind SectionKind) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Section == kind {
			out = append(out, is)
		}
	}
	return out
}

func (r ComplianceReport) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}
