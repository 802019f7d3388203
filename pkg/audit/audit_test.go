package audit

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sectionHeadings = map[string]string{
	SectionCoreExpertise: "## Core Expertise",
	SectionMentalModels:  "## Mental Models",
	SectionBestPractices: "## Best Practices",
	SectionPitfalls:      "## Pitfalls to Avoid",
	SectionTools:         "## Tools & Technologies",
}

// buildDoc returns a persona document of about 130 lines without the
// listed sections.
func buildDoc(created string, omit ...string) string {
	skip := make(map[string]bool)
	for _, o := range omit {
		skip[o] = true
	}

	var b strings.Builder
	b.WriteString("---\narchetype: qa-engineer\n")
	if created != "" {
		fmt.Fprintf(&b, "created: %s\n", created)
	}
	b.WriteString("category: testing\nkeywords:\n  - qa\n  - testing\n---\n\n# QA Engineer\n\n")
	if !skip[SectionRole] {
		b.WriteString("You are a meticulous QA engineer.\nYou care about regressions.\n\n")
	}
	for _, rule := range Rules {
		if rule.IsRole() || skip[rule.Key] {
			continue
		}
		b.WriteString(sectionHeadings[rule.Key] + "\n\n")
		for i := 0; i < 24; i++ {
			fmt.Fprintf(&b, "- point %d\n", i)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var fixedNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestAuditCompleteDocument(t *testing.T) {
	res := Audit(buildDoc("2025-05-01"), Options{Now: fixedNow, Location: "local"})

	assert.Equal(t, "qa-engineer", res.Archetype)
	assert.Equal(t, "local", res.Location)
	assert.Equal(t, 1.0, res.Quality.Completeness)
	assert.Equal(t, LengthGood, res.Quality.LengthStatus)
	assert.Empty(t, res.Suggestions)

	for _, rule := range Rules {
		assert.True(t, res.Sections[rule.Key].Present, rule.Key)
	}
	assert.Equal(t, 2, res.Sections[SectionRole].LineCount)
	assert.Equal(t, 24, res.Sections[SectionPitfalls].LineCount)

	require.NotNil(t, res.Frontmatter.Archetype.Valid)
	assert.True(t, *res.Frontmatter.Archetype.Valid)
	assert.Equal(t, "qa, testing", res.Frontmatter.Keywords.Value)
	assert.Equal(t, Age{Created: "2025-05-01", Months: 1, Status: AgeFresh}, res.Age)
}

func TestAuditMissingPitfalls(t *testing.T) {
	res := Audit(buildDoc("2025-05-01", SectionPitfalls), Options{Now: fixedNow})

	assert.False(t, res.Sections[SectionPitfalls].Present)
	assert.Equal(t, 0.83, res.Quality.Completeness)

	var mentions bool
	for _, s := range res.Suggestions {
		if strings.Contains(strings.ToLower(s), "pitfalls") {
			mentions = true
		}
	}
	assert.True(t, mentions, "suggestions: %v", res.Suggestions)
	assert.Contains(t, res.Suggestions, "Add ## Pitfalls section")
}

func TestAuditCompletenessDecreases(t *testing.T) {
	var omitted []string
	prev := Audit(buildDoc("2025-05-01"), Options{Now: fixedNow}).Quality.Completeness

	for _, rule := range Rules {
		omitted = append(omitted, rule.Key)
		cur := Audit(buildDoc("2025-05-01", omitted...), Options{Now: fixedNow}).Quality.Completeness
		assert.Less(t, cur, prev, "after removing %v", omitted)
		prev = cur
	}
	assert.Equal(t, 0.0, prev)
}

func TestAuditAge(t *testing.T) {
	tests := []struct {
		created string
		months  int
		status  AgeStatus
	}{
		{"2025-05-01", 1, AgeFresh},
		{"2025-02-01", 4, AgeAging},
		{"2024-11-01", 7, AgeStale},
		{"2023-01-01", 29, AgeStale},
		{"2026-01-01", 0, AgeFresh},
	}

	for _, tt := range tests {
		t.Run(tt.created, func(t *testing.T) {
			res := Audit(buildDoc(tt.created), Options{Now: fixedNow})
			assert.Equal(t, tt.months, res.Age.Months)
			assert.Equal(t, tt.status, res.Age.Status)
		})
	}
}

func TestAuditAgeSuggestions(t *testing.T) {
	stale := Audit(buildDoc("2023-01-01"), Options{Now: fixedNow, CheckAge: true})
	assert.Contains(t, stale.Suggestions, "Consider updating - persona is 29 months old")

	aging := Audit(buildDoc("2025-02-01"), Options{Now: fixedNow, CheckAge: true})
	assert.Contains(t, aging.Suggestions, "Persona is 4 months old - may need review soon")

	quiet := Audit(buildDoc("2023-01-01"), Options{Now: fixedNow})
	for _, s := range quiet.Suggestions {
		assert.NotContains(t, s, "months old")
	}
}

func TestAuditUnknownAge(t *testing.T) {
	res := Audit(buildDoc(""), Options{Now: fixedNow})
	assert.Equal(t, AgeUnknown, res.Age.Status)
	assert.Equal(t, "unknown", res.Age.Created)
	assert.False(t, res.Frontmatter.Created.Present)
	assert.Contains(t, res.Suggestions, "Add created date to frontmatter (YYYY-MM-DD)")

	bad := Audit(strings.Replace(buildDoc("2025-05-01"), "2025-05-01", "May 2025", 1), Options{Now: fixedNow})
	assert.Equal(t, AgeUnknown, bad.Age.Status)
	require.NotNil(t, bad.Frontmatter.Created.Valid)
	assert.False(t, *bad.Frontmatter.Created.Valid)
	assert.Contains(t, bad.Suggestions, "Fix created date format (expected YYYY-MM-DD)")
}

func TestAuditLengthBands(t *testing.T) {
	short := Audit("---\narchetype: x\n---\nYou are brief.", Options{Now: fixedNow})
	assert.Equal(t, LengthShort, short.Quality.LengthStatus)
	assert.Equal(t, 4, short.Quality.TotalLines)
	assert.Contains(t, short.Suggestions, "Persona is short (4 lines) - consider adding more detail")

	long := Audit(buildDoc("2025-05-01")+strings.Repeat("filler\n", 450), Options{Now: fixedNow})
	assert.Equal(t, LengthLong, long.Quality.LengthStatus)
}

func TestAuditHeadingMatching(t *testing.T) {
	doc := "---\narchetype: x\n---\n\nYou are x.\n\n### core   EXPERTISE\n\ntext\n\n## Tools and Technologies\n\n```\n## Pitfalls\n```\n\n# Mental Models\n"
	res := Audit(doc, Options{Now: fixedNow})

	assert.True(t, res.Sections[SectionCoreExpertise].Present, "deeper headings count, case-insensitive")
	assert.True(t, res.Sections[SectionTools].Present)
	assert.False(t, res.Sections[SectionPitfalls].Present, "headings inside code blocks do not count")
	assert.False(t, res.Sections[SectionMentalModels].Present, "level one headings do not count")
}

func TestAuditRoleDescription(t *testing.T) {
	inFirst := Audit("# Title\n\nAs an expert, You are calm.\n\n## Other\n", Options{Now: fixedNow})
	assert.True(t, inFirst.Sections[SectionRole].Present)

	later := Audit("# Title\n\nIntro.\n\nYou are calm.\n", Options{Now: fixedNow})
	assert.True(t, later.Sections[SectionRole].Present)

	buried := Audit("# Title\n\nIntro.\n\nBut You are calm.\n", Options{Now: fixedNow})
	assert.False(t, buried.Sections[SectionRole].Present)
	assert.Contains(t, buried.Suggestions, `Add role description (paragraph with "You are")`)
	assert.Equal(t, "unknown", buried.Archetype)
}

type fixedCounter int

func (c fixedCounter) CountTokens(string) int { return int(c) }

func TestAuditTokens(t *testing.T) {
	res := Audit(buildDoc("2025-05-01"), Options{Now: fixedNow, Tokens: fixedCounter(42)})
	assert.Equal(t, 42, res.Quality.Tokens)

	res = Audit(buildDoc("2025-05-01"), Options{Now: fixedNow})
	assert.Zero(t, res.Quality.Tokens)
}

func TestAuditInvalidShapes(t *testing.T) {
	doc := "---\narchetype: Bad_Name\ncategory:\n  - a\nkeywords: one\n---\nYou are x.\n"
	res := Audit(doc, Options{Now: fixedNow})

	assert.Contains(t, res.Suggestions, "Convert archetype to kebab-case")
	assert.Contains(t, res.Suggestions, "Fix category field: category must be a single value")
	assert.Contains(t, res.Suggestions, "Fix keywords field: keywords must be a list")
}
