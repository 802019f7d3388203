// Package audit checks the structure of persona documents.
//
// Validate is strict: a document either has every required part or it is
// rejected with a list of messages. Audit runs the same rules but scores the
// document and turns each gap into a suggestion.
package audit

import "fmt"

// Section keys, in report order.
const (
	SectionRole          = "roleDescription"
	SectionCoreExpertise = "coreExpertise"
	SectionMentalModels  = "mentalModels"
	SectionBestPractices = "bestPractices"
	SectionPitfalls      = "pitfalls"
	SectionTools         = "tools"
)

// Rule describes one required part of a persona document.
type Rule struct {
	// Key identifies the section in reports.
	Key string

	// Title is the canonical heading text.
	Title string

	// Alternate is an accepted longer heading, shown in messages.
	Alternate string

	// Prefixes are lower-case heading prefixes that satisfy the rule. A
	// rule without prefixes is the role description.
	Prefixes []string
}

// Rules lists every required part.
var Rules = []Rule{
	{Key: SectionRole, Title: "Role description"},
	{Key: SectionCoreExpertise, Title: "Core Expertise", Prefixes: []string{"core expertise"}},
	{Key: SectionMentalModels, Title: "Mental Models", Prefixes: []string{"mental models"}},
	{Key: SectionBestPractices, Title: "Best Practices", Prefixes: []string{"best practices"}},
	{Key: SectionPitfalls, Title: "Pitfalls", Alternate: "Pitfalls to Avoid", Prefixes: []string{"pitfalls"}},
	{Key: SectionTools, Title: "Tools", Alternate: "Tools & Technologies", Prefixes: []string{"tools"}},
}

// IsRole reports whether the rule is the role description.
func (r Rule) IsRole() bool {
	return len(r.Prefixes) == 0
}

// missingError is the validator message for an absent part.
func (r Rule) missingError() string {
	if r.IsRole() {
		return `Missing role description (paragraph starting with "You are")`
	}
	if r.Alternate != "" {
		return fmt.Sprintf("Missing required section: ## %s (or ## %s)", r.Title, r.Alternate)
	}
	return fmt.Sprintf("Missing required section: ## %s", r.Title)
}

// suggestion is the auditor message for an absent part.
func (r Rule) suggestion() string {
	if r.IsRole() {
		return `Add role description (paragraph with "You are")`
	}
	return fmt.Sprintf("Add ## %s section", r.Title)
}

// Length bands in lines.
const (
	ShortLines = 100
	LongLines  = 500
)

// LengthStatus classifies document length.
type LengthStatus string

const (
	LengthShort LengthStatus = "short"
	LengthGood  LengthStatus = "good"
	LengthLong  LengthStatus = "long"
)

func lengthStatus(lines int) LengthStatus {
	switch {
	case lines < ShortLines:
		return LengthShort
	case lines > LongLines:
		return LengthLong
	default:
		return LengthGood
	}
}
