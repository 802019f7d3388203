package audit

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/entrhq/persona/pkg/persona"
)

// AgeStatus is the freshness band of a persona.
type AgeStatus string

const (
	AgeFresh   AgeStatus = "fresh"
	AgeAging   AgeStatus = "aging"
	AgeStale   AgeStatus = "stale"
	AgeUnknown AgeStatus = "unknown"
)

// Freshness bands in months.
const (
	agingMonths = 3
	staleMonths = 6
	monthDays   = 30
)

// TokenCounter counts tokens in text. *tokenizer.Tokenizer satisfies it.
type TokenCounter interface {
	CountTokens(text string) int
}

// Options controls Audit.
type Options struct {
	// Now is the reference time for age. Zero means time.Now.
	Now time.Time

	// CheckAge adds suggestions for aging and stale personas.
	CheckAge bool

	// Tokens, when set, fills Quality.Tokens.
	Tokens TokenCounter

	// Location is copied into the result (local, user or file).
	Location string
}

// FieldCheck reports one frontmatter field. Valid is nil when there is
// nothing to validate.
type FieldCheck struct {
	Present bool   `json:"present"`
	Valid   *bool  `json:"valid,omitempty"`
	Value   string `json:"value,omitempty"`
	Problem string `json:"problem,omitempty"`
}

// FrontmatterChecks groups the field checks.
type FrontmatterChecks struct {
	Archetype FieldCheck `json:"archetype"`
	Created   FieldCheck `json:"created"`
	Category  FieldCheck `json:"category"`
	Keywords  FieldCheck `json:"keywords"`
}

// SectionCheck reports one required part.
type SectionCheck struct {
	Present   bool `json:"present"`
	LineCount int  `json:"lineCount"`
}

// Age describes how old a persona is.
type Age struct {
	Created string    `json:"created"`
	Months  int       `json:"months"`
	Status  AgeStatus `json:"status"`
}

// Quality holds the document metrics.
type Quality struct {
	TotalLines   int          `json:"totalLines"`
	LengthStatus LengthStatus `json:"lengthStatus"`
	Completeness float64      `json:"completeness"`
	Tokens       int          `json:"tokens,omitempty"`
}

// Result is the audit report of one document.
type Result struct {
	Archetype   string                  `json:"archetype"`
	Location    string                  `json:"location,omitempty"`
	Age         Age                     `json:"age"`
	Frontmatter FrontmatterChecks       `json:"frontmatter"`
	Sections    map[string]SectionCheck `json:"sections"`
	Quality     Quality                 `json:"quality"`
	Suggestions []string                `json:"suggestions"`
}

// Audit scores a persona document and suggests improvements.
func Audit(content string, opts Options) Result {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	doc := analyze(content)
	res := Result{
		Archetype:   doc.fm.Archetype,
		Location:    opts.Location,
		Sections:    make(map[string]SectionCheck, len(Rules)),
		Suggestions: []string{},
	}
	if res.Archetype == "" {
		res.Archetype = "unknown"
	}

	if doc.fm.Err != nil {
		res.Suggestions = append(res.Suggestions, fmt.Sprintf("Fix frontmatter YAML: %v", doc.fm.Err))
	}
	res.Frontmatter = checkFields(doc.fm)
	res.Suggestions = append(res.Suggestions, fieldSuggestions(res.Frontmatter)...)

	res.Age = age(doc.fm, now)
	if opts.CheckAge {
		switch res.Age.Status {
		case AgeStale:
			res.Suggestions = append(res.Suggestions, fmt.Sprintf("Consider updating - persona is %d months old", res.Age.Months))
		case AgeAging:
			res.Suggestions = append(res.Suggestions, fmt.Sprintf("Persona is %d months old - may need review soon", res.Age.Months))
		}
	}

	present := 0
	for _, rule := range Rules {
		check := doc.sections[rule.Key]
		res.Sections[rule.Key] = check
		if check.Present {
			present++
			continue
		}
		res.Suggestions = append(res.Suggestions, rule.suggestion())
	}

	res.Quality = Quality{
		TotalLines:   doc.lines,
		LengthStatus: lengthStatus(doc.lines),
		Completeness: math.Round(float64(present)/float64(len(Rules))*100) / 100,
	}
	switch res.Quality.LengthStatus {
	case LengthShort:
		res.Suggestions = append(res.Suggestions, fmt.Sprintf("Persona is short (%d lines) - consider adding more detail", doc.lines))
	case LengthLong:
		res.Suggestions = append(res.Suggestions, fmt.Sprintf("Persona is long (%d lines) - consider condensing", doc.lines))
	}
	if opts.Tokens != nil {
		res.Quality.Tokens = opts.Tokens.CountTokens(content)
	}
	return res
}

// analysis is what both Audit and Validate derive from a document.
type analysis struct {
	fm       persona.Frontmatter
	found    bool
	lines    int
	sections map[string]SectionCheck
}

func analyze(content string) analysis {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	fm, body, found := persona.ParseFrontmatter(normalized)
	o := parseOutline(body)

	a := analysis{
		fm:       fm,
		found:    found,
		lines:    persona.CountLines(normalized),
		sections: make(map[string]SectionCheck, len(Rules)),
	}
	for _, rule := range Rules {
		if rule.IsRole() {
			if p, ok := o.role(); ok {
				a.sections[rule.Key] = SectionCheck{Present: true, LineCount: p.lines}
			}
			continue
		}
		if h, ok := o.find(rule.Prefixes); ok {
			a.sections[rule.Key] = SectionCheck{Present: true, LineCount: o.sectionLines(body, h)}
		}
	}
	return a
}

func checkFields(fm persona.Frontmatter) FrontmatterChecks {
	return FrontmatterChecks{
		Archetype: fieldCheck(fm, persona.FieldArchetype, fm.Archetype, persona.ValidArchetype),
		Created: fieldCheck(fm, persona.FieldCreated, fm.Created, func(string) bool {
			_, ok := fm.CreatedDate()
			return ok
		}),
		Category: fieldCheck(fm, persona.FieldCategory, fm.Category, nil),
		Keywords: fieldCheck(fm, persona.FieldKeywords, strings.Join(fm.Keywords, ", "), nil),
	}
}

func fieldCheck(fm persona.Frontmatter, field, value string, valid func(string) bool) FieldCheck {
	if problem, bad := fm.Problem(field); bad {
		return FieldCheck{Present: true, Valid: boolPtr(false), Problem: problem}
	}
	if !fm.Has(field) {
		return FieldCheck{}
	}
	c := FieldCheck{Present: true, Value: value}
	if valid != nil {
		c.Valid = boolPtr(valid(value))
	}
	return c
}

func fieldSuggestions(c FrontmatterChecks) []string {
	var out []string
	switch {
	case !c.Archetype.Present:
		out = append(out, "Add archetype field to frontmatter")
	case !*c.Archetype.Valid:
		out = append(out, "Convert archetype to kebab-case")
	}
	switch {
	case !c.Created.Present:
		out = append(out, "Add created date to frontmatter (YYYY-MM-DD)")
	case !*c.Created.Valid:
		out = append(out, "Fix created date format (expected YYYY-MM-DD)")
	}
	switch {
	case !c.Category.Present:
		out = append(out, "Consider adding category field")
	case c.Category.Problem != "":
		out = append(out, "Fix category field: "+c.Category.Problem)
	}
	switch {
	case !c.Keywords.Present:
		out = append(out, "Consider adding keywords for better discoverability")
	case c.Keywords.Problem != "":
		out = append(out, "Fix keywords field: "+c.Keywords.Problem)
	}
	return out
}

func age(fm persona.Frontmatter, now time.Time) Age {
	created, ok := fm.CreatedDate()
	if !ok {
		return Age{Created: "unknown", Status: AgeUnknown}
	}
	days := int(math.Floor(now.Sub(created).Hours() / 24))
	months := days / monthDays
	if months < 0 {
		months = 0
	}
	a := Age{Created: fm.Created, Months: months}
	switch {
	case months < agingMonths:
		a.Status = AgeFresh
	case months < staleMonths:
		a.Status = AgeAging
	default:
		a.Status = AgeStale
	}
	return a
}

func boolPtr(b bool) *bool {
	return &b
}
