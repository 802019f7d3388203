package audit

import "fmt"

// Fields are the frontmatter values a validator reports.
type Fields struct {
	Archetype string   `json:"archetype,omitempty"`
	Created   string   `json:"created,omitempty"`
	Category  string   `json:"category,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// Validation is the strict verdict on a document. Only Errors make it
// invalid; Warnings are advisory.
type Validation struct {
	Valid       bool            `json:"valid"`
	Frontmatter Fields          `json:"frontmatter"`
	Sections    map[string]bool `json:"sections"`
	LineCount   int             `json:"lineCount"`
	Errors      []string        `json:"errors"`
	Warnings    []string        `json:"warnings"`
}

// Validate checks a persona document against the required structure.
func Validate(content string) Validation {
	doc := analyze(content)
	fm := doc.fm
	v := Validation{
		Frontmatter: Fields{
			Archetype: fm.Archetype,
			Created:   fm.Created,
			Category:  fm.Category,
			Keywords:  fm.Keywords,
		},
		Sections:  make(map[string]bool, len(Rules)),
		LineCount: doc.lines,
		Errors:    []string{},
		Warnings:  []string{},
	}

	switch {
	case !doc.found:
		v.Errors = append(v.Errors, "Missing YAML frontmatter")
	case fm.Err != nil:
		v.Errors = append(v.Errors, fmt.Sprintf("Invalid YAML frontmatter: %v", fm.Err))
	}

	checks := checkFields(fm)
	switch {
	case checks.Archetype.Problem != "":
		v.Errors = append(v.Errors, "Invalid frontmatter field: "+checks.Archetype.Problem)
	case !checks.Archetype.Present:
		v.Errors = append(v.Errors, "Missing required frontmatter field: archetype")
	case !*checks.Archetype.Valid:
		v.Errors = append(v.Errors, fmt.Sprintf("Archetype must be kebab-case: %q", fm.Archetype))
	}
	switch {
	case checks.Created.Problem != "":
		v.Errors = append(v.Errors, "Invalid frontmatter field: "+checks.Created.Problem)
	case !checks.Created.Present:
		v.Errors = append(v.Errors, "Missing required frontmatter field: created")
	case !*checks.Created.Valid:
		v.Errors = append(v.Errors, fmt.Sprintf("Invalid date format for created (expected YYYY-MM-DD): %q", fm.Created))
	}
	switch {
	case checks.Category.Problem != "":
		v.Warnings = append(v.Warnings, "Invalid optional frontmatter field: "+checks.Category.Problem)
	case !checks.Category.Present:
		v.Warnings = append(v.Warnings, "Missing optional frontmatter field: category")
	}
	switch {
	case checks.Keywords.Problem != "":
		v.Warnings = append(v.Warnings, "Invalid optional frontmatter field: "+checks.Keywords.Problem)
	case !checks.Keywords.Present:
		v.Warnings = append(v.Warnings, "Missing optional frontmatter field: keywords")
	}

	for _, rule := range Rules {
		present := doc.sections[rule.Key].Present
		v.Sections[rule.Key] = present
		if !present {
			v.Errors = append(v.Errors, rule.missingError())
		}
	}

	switch lengthStatus(doc.lines) {
	case LengthShort:
		v.Warnings = append(v.Warnings, fmt.Sprintf("Persona is short (%d lines, recommended: %d-%d)", doc.lines, ShortLines, LongLines))
	case LengthLong:
		v.Warnings = append(v.Warnings, fmt.Sprintf("Persona is long (%d lines, recommended: %d-%d)", doc.lines, ShortLines, LongLines))
	}

	v.Valid = len(v.Errors) == 0
	return v
}
