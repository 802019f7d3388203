package persona

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `---
archetype: %s
created: 2025-01-15
category: %s
keywords:
  - testing
  - quality
---

# QA Engineer

You are a meticulous QA engineer. You hunt regressions.

## Core Expertise
- test design
`

type fixture struct {
	local string
	user  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tmp := t.TempDir()
	f := fixture{local: filepath.Join(tmp, "project"), user: filepath.Join(tmp, "home")}
	require.NoError(t, os.MkdirAll(f.local, 0o755))
	require.NoError(t, os.MkdirAll(f.user, 0o755))
	return f
}

func (f fixture) write(t *testing.T, root string, conv Convention, archetype, content string) string {
	t.Helper()
	dir := filepath.Join(root, SkillsDir, conv.DirName(archetype))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, conv.File)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f fixture) doc(archetype, category string) string {
	return strings.Replace(strings.Replace(sampleDoc, "%s", archetype, 1), "%s", category, 1)
}

func (f fixture) resolver() *Resolver {
	return NewResolver(NewStore(f.local, f.user))
}

func TestResolveLocalBeatsUser(t *testing.T) {
	orders := []struct {
		name       string
		localFirst bool
	}{
		{"local created first", true},
		{"user created first", false},
	}

	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var localPath string
			if tt.localFirst {
				localPath = f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
				f.write(t, f.user, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
			} else {
				f.write(t, f.user, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
				localPath = f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
			}

			d, err := f.resolver().Resolve(context.Background(), "qa-engineer")
			require.NoError(t, err)
			assert.Equal(t, ScopeLocal, d.Scope)
			assert.Equal(t, localPath, d.Path)
		})
	}
}

func TestResolveLocalLegacyBeatsUserCurrent(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.user, ConventionCurrent, "go-dev", f.doc("go-dev", "backend"))
	legacy := f.write(t, f.local, ConventionLegacy, "go-dev", f.doc("go-dev", "backend"))

	d, err := f.resolver().Resolve(context.Background(), "go-dev")
	require.NoError(t, err)
	assert.Equal(t, ScopeLocal, d.Scope)
	assert.Equal(t, ConventionLegacy.Name, d.Convention)
	assert.Equal(t, legacy, d.Path)
}

func TestResolveCurrentBeatsLegacyInScope(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.user, ConventionLegacy, "go-dev", f.doc("go-dev", "backend"))
	current := f.write(t, f.user, ConventionCurrent, "go-dev", f.doc("go-dev", "backend"))

	d, err := f.resolver().Resolve(context.Background(), "go-dev")
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, d.Scope)
	assert.Equal(t, current, d.Path)
}

func TestResolveIdempotent(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.user, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	r := f.resolver()

	first, err := r.Resolve(context.Background(), "qa-engineer")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "qa-engineer")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveNotFound(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()

	for _, name := range []string{"missing", "../etc", "Bad_Name", ""} {
		_, err := r.Resolve(context.Background(), name)
		assert.True(t, errors.Is(err, ErrNotFound), "archetype %q: %v", name, err)
		assert.False(t, r.Exists(context.Background(), name))
	}
}

func TestResolveIgnoresDirectoryWithoutDocument(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.local, SkillsDir, "assume-persona--empty"), 0o755))
	fallback := f.write(t, f.user, ConventionCurrent, "empty", f.doc("empty", "misc"))

	d, err := f.resolver().Resolve(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, fallback, d.Path)
}

func TestResolveInScope(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	f.write(t, f.user, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))

	d, err := f.resolver().ResolveIn(context.Background(), ScopeUser, "qa-engineer")
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, d.Scope)
}

func TestResolveFrontmatter(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))

	d, err := f.resolver().Resolve(context.Background(), "qa-engineer")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", d.Frontmatter.Created)
	assert.Equal(t, "testing", d.Frontmatter.Category)
	assert.Equal(t, []string{"testing", "quality"}, d.Frontmatter.Keywords)
}

func TestResolveCanceledContext(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.resolver().Resolve(ctx, "qa-engineer")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListPrecedenceAndDedupe(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	f.write(t, f.local, ConventionLegacy, "qa-engineer", f.doc("qa-engineer", "legacy"))
	f.write(t, f.user, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "user"))
	f.write(t, f.user, ConventionLegacy, "go-dev", f.doc("go-dev", "backend"))
	f.write(t, f.user, ConventionCurrent, "architect", f.doc("architect", "design"))

	list, err := f.resolver().List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "architect", list[0].Archetype)
	assert.Equal(t, "go-dev", list[1].Archetype)
	assert.Equal(t, ConventionLegacy.Name, list[1].Convention)
	assert.Equal(t, "qa-engineer", list[2].Archetype)
	assert.Equal(t, ScopeLocal, list[2].Scope)
	assert.Equal(t, "testing", list[2].Category)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	f.write(t, f.user, ConventionCurrent, "qa-lead", f.doc("qa-lead", "management"))
	f.write(t, f.user, ConventionCurrent, "go-dev", f.doc("go-dev", "backend"))
	r := f.resolver()
	ctx := context.Background()

	byPattern, err := r.List(ctx, ListOptions{Patterns: []string{"qa-*"}})
	require.NoError(t, err)
	assert.Len(t, byPattern, 2)

	byCategory, err := r.List(ctx, ListOptions{Category: "backend"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "go-dev", byCategory[0].Archetype)

	byScope, err := r.List(ctx, ListOptions{Scope: ScopeLocal})
	require.NoError(t, err)
	require.Len(t, byScope, 1)
	assert.Equal(t, "qa-engineer", byScope[0].Archetype)

	_, err = r.List(ctx, ListOptions{Patterns: []string{"[unterminated"}})
	assert.Error(t, err)
}

func TestListFilterDoesNotExposeShadowedDocument(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	f.write(t, f.user, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "backend"))

	list, err := f.resolver().List(context.Background(), ListOptions{Category: "backend"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListMissingDirectories(t *testing.T) {
	f := newFixture(t)
	list, err := f.resolver().List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListSummaryDefaults(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.local, ConventionCurrent, "bare", "# Bare\n\nA persona without a header.\n\nMore text.")

	list, err := f.resolver().List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	p := list[0]
	assert.Equal(t, "uncategorized", p.Category)
	assert.Equal(t, "unknown", p.Created)
	assert.Equal(t, "# Bare", p.Description)
	assert.Equal(t, 5, p.LineCount)
}

func TestListPrefersSkillDescription(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	skill := "---\nname: assume-persona--qa-engineer\ndescription: |\n  Use when reviewing test plans.\n  Second line.\n---\n"
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "SKILL.md"), []byte(skill), 0o644))

	list, err := f.resolver().List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Use when reviewing test plans.", list[0].Description)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "role sentence",
			content: "---\narchetype: x\n---\n# X\n\nIntro.\n\nYou are an expert. More.",
			want:    "You are an expert.",
		},
		{
			name:    "first paragraph",
			content: "---\narchetype: x\n---\n\nFirst paragraph\ncontinues.\n\nSecond.",
			want:    "First paragraph\ncontinues.",
		},
		{
			name:    "truncated",
			content: "You are " + strings.Repeat("a", 120) + ".",
			want:    "You are " + strings.Repeat("a", 92) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.content))
		})
	}
}

func TestStoreRemove(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, f.local, ConventionCurrent, "qa-engineer", f.doc("qa-engineer", "testing"))
	s := NewStore(f.local, f.user)

	require.Error(t, s.Remove(f.local))
	require.NoError(t, s.Remove(filepath.Dir(path)))
	assert.False(t, s.Exists(path))
}

func TestConventionArchetype(t *testing.T) {
	a, ok := ConventionCurrent.Archetype("assume-persona--qa-engineer")
	assert.True(t, ok)
	assert.Equal(t, "qa-engineer", a)

	_, ok = ConventionCurrent.Archetype("persona-qa-engineer")
	assert.False(t, ok)

	a, ok = ConventionLegacy.Archetype("persona-qa-engineer")
	assert.True(t, ok)
	assert.Equal(t, "qa-engineer", a)

	_, ok = ConventionLegacy.Archetype("assume-persona--x")
	assert.False(t, ok)
}

func TestRulesOrder(t *testing.T) {
	rules := Rules(Scopes, DefaultConventions())
	require.Len(t, rules, 4)
	assert.Equal(t, Rule{ScopeLocal, ConventionCurrent}, rules[0])
	assert.Equal(t, Rule{ScopeLocal, ConventionLegacy}, rules[1])
	assert.Equal(t, Rule{ScopeUser, ConventionCurrent}, rules[2])
	assert.Equal(t, Rule{ScopeUser, ConventionLegacy}, rules[3])
}
