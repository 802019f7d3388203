package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/entrhq/persona/pkg/audit"
	"github.com/entrhq/persona/pkg/lifecycle"
	"github.com/entrhq/persona/pkg/persona"
)

const helpLine = "- /assume-persona:help for more info"

// renderStart is the context a session-start hook hands to the model. It
// is empty when nothing was delivered.
func renderStart(res *lifecycle.StartResult) string {
	if res.Compact != nil {
		return renderCompact(res.Compact)
	}
	if len(res.Entries) == 0 {
		return ""
	}

	var blocks []string
	for _, e := range res.Entries {
		if e.Content == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("<active-persona archetype=%q source=%q>\n%s\n</active-persona>",
			e.Archetype, string(e.Scope), e.Content))
	}

	var notes []string
	if auto := res.Archetypes(lifecycle.ReasonAuto); len(auto) > 0 {
		notes = append(notes, "- Persona loaded from project config: "+strings.Join(auto, ", "))
	}
	if restored := res.Archetypes(lifecycle.ReasonRestored); len(restored) > 0 {
		notes = append(notes, "- Persona restored from session: "+strings.Join(restored, ", "))
	}
	notes = append(notes, helpLine)

	var b strings.Builder
	if len(blocks) > 0 {
		b.WriteString(strings.Join(blocks, "\n\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nIMPORTANT: At the START of your first response, output these lines exactly, then a blank line before your response:\n")
	b.WriteString(strings.Join(notes, "\n"))
	return b.String()
}

// renderCompact is the context preserved across a compaction. It is empty
// when the session has nothing loaded.
func renderCompact(res *lifecycle.CompactResult) string {
	if len(res.Personas) == 0 {
		return ""
	}
	parts := make([]string, 0, len(res.Personas))
	for _, p := range res.Personas {
		parts = append(parts, fmt.Sprintf("## Persona: %s\n\n%s", p.Archetype, p.Content))
	}
	return "# Active Personas\n\nThe following expert personas were loaded in this session and should be preserved:\n\n" +
		strings.Join(parts, "\n\n---\n\n")
}

func renderLoad(res *lifecycle.LoadResult) string {
	switch res.Status {
	case lifecycle.StatusAlreadyLoaded:
		return fmt.Sprintf("Persona '%s' is already loaded in this session.", res.Archetype)
	case lifecycle.StatusNotFound:
		return fmt.Sprintf("Persona '%s' not found in local or user scope.", res.Archetype)
	case lifecycle.StatusFailed:
		return fmt.Sprintf("Failed to load persona '%s': %s", res.Archetype, res.Err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Persona Loaded: %s\n\n%s", res.Archetype, res.Content)
	if res.Validation != nil {
		b.WriteString("\n\n---\n\n")
		b.WriteString(renderValidation(*res.Validation))
	}
	return b.String()
}

func renderValidation(v audit.Validation) string {
	var b strings.Builder
	b.WriteString("## Validation Report\n\n")
	if v.Valid {
		b.WriteString("**Status**: Valid\n")
	} else {
		b.WriteString("**Status**: Has issues\n")
	}
	fmt.Fprintf(&b, "**Lines**: %d\n", v.LineCount)

	if len(v.Errors) > 0 {
		b.WriteString("\n### Errors\n")
		for _, e := range v.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if len(v.Warnings) > 0 {
		b.WriteString("\n### Warnings\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		b.WriteString("\nNo issues found.\n")
	}
	return b.String()
}

func renderShow(res *lifecycle.ShowResult) string {
	p := res.Persona
	var b strings.Builder
	fmt.Fprintf(&b, "# Persona: %s\n\n", p.Archetype)
	fmt.Fprintf(&b, "- **Location**: %s (%s)\n", p.Scope, displayPath(p.Scope, p.Dir))
	fmt.Fprintf(&b, "- **Category**: %s\n", p.Category)
	fmt.Fprintf(&b, "- **Created**: %s\n", p.Created)
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "- **Keywords**: %s\n", strings.Join(p.Keywords, ", "))
	}
	fmt.Fprintf(&b, "- **Lines**: %d\n", p.LineCount)
	if res.Tokens > 0 {
		fmt.Fprintf(&b, "- **Tokens**: ~%d\n", res.Tokens)
	}
	if res.Loaded {
		b.WriteString("- **Loaded**: yes\n")
	}
	b.WriteString("\n---\n\n")
	b.WriteString(res.Content)
	return b.String()
}

func renderList(st styles, res *lifecycle.ListResult) string {
	if len(res.Personas) == 0 {
		return "No personas found.\n\nCreate one with /assume-persona:create <name>"
	}

	var b strings.Builder
	b.WriteString(st.heading.Render("# Available Personas"))
	b.WriteString("\n\n")
	for _, item := range res.Personas {
		var flags []string
		if item.Loaded {
			flags = append(flags, "loaded")
		}
		if item.AutoLoad {
			flags = append(flags, "auto-load")
		}
		title := "## " + item.Archetype
		if len(flags) > 0 {
			title += " (" + strings.Join(flags, ", ") + ")"
		}
		b.WriteString(st.heading.Render(title))
		b.WriteString("\n")
		fmt.Fprintf(&b, "- **Description**: %s\n", item.Description)
		fmt.Fprintf(&b, "- **Category**: %s\n", item.Category)
		fmt.Fprintf(&b, "- **Location**: %s\n", item.Scope)
		fmt.Fprintf(&b, "- **Lines**: %d\n", item.LineCount)
		if len(item.Keywords) > 0 {
			fmt.Fprintf(&b, "- **Keywords**: %s\n", strings.Join(item.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "**Total**: %d personas\n", res.Summary.Total)
	fmt.Fprintf(&b, "**Loaded this session**: %d\n", res.Summary.Loaded)
	fmt.Fprintf(&b, "**Auto-load configured**: %d", res.Summary.AutoLoad)
	return b.String()
}

func renderStatus(st styles, s *lifecycle.SessionStatus) string {
	var b strings.Builder
	b.WriteString(st.heading.Render("# Persona Status"))
	b.WriteString("\n\n")

	if len(s.MissingAutoLoad) > 0 {
		b.WriteString(st.warn.Render("## ⚠️ Missing Auto-Load Personas"))
		b.WriteString("\n\nThese personas are configured for auto-load but could not be found:\n")
		for _, a := range s.MissingAutoLoad {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\nRemove them from the config or create them with /assume-persona:create.\n\n")
	}

	if len(s.Loaded) == 0 {
		b.WriteString("No personas loaded this session.\n")
	} else {
		b.WriteString(st.heading.Render("## Loaded Personas"))
		b.WriteString("\n")
		for _, p := range s.Loaded {
			if p.Auto {
				fmt.Fprintf(&b, "- %s %s\n", p.Archetype, st.muted.Render("(auto-loaded)"))
			} else {
				fmt.Fprintf(&b, "- %s\n", p.Archetype)
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(st.heading.Render("## Quick Actions"))
	b.WriteString("\n")
	b.WriteString("- /assume-persona:load <name> to load a persona\n")
	b.WriteString("- /assume-persona:clear [name] to allow re-loading\n")
	b.WriteString("- /assume-persona:list to see available personas\n")
	if s.ConfigPath != "" {
		fmt.Fprintf(&b, "\n**Auto-load config**: %s", s.ConfigPath)
	}
	return b.String()
}

func renderClear(res *lifecycle.ClearResult, archetype string) string {
	if res.All {
		return "Cleared all personas from session state.\n\n" +
			"Note: The persona content already in this session's context remains.\n" +
			"Personas can now be re-loaded via /assume-persona:load."
	}
	if archetype == "" {
		return "No personas loaded in current session."
	}
	if len(res.Cleared) == 0 {
		return fmt.Sprintf("Persona '%s' is not loaded in current session.\n\nLoaded personas: %s",
			archetype, joinOrNone(res.Remaining))
	}
	return fmt.Sprintf("Cleared '%s' from session state.\n\nRemaining loaded: %s\n\nThe persona can now be re-loaded via /assume-persona:load.",
		archetype, joinOrNone(res.Remaining))
}

func renderExists(archetype string, d *persona.Descriptor) string {
	if d == nil {
		return fmt.Sprintf("Persona '%s' does not exist.", archetype)
	}
	return fmt.Sprintf("Persona '%s' exists in %s scope: %s", archetype, d.Scope, displayPath(d.Scope, d.Dir))
}

func renderDelete(res *lifecycle.DeleteResult) string {
	msg := fmt.Sprintf("Deleted persona '%s' from %s scope (%s).", res.Archetype, res.Scope, displayPath(res.Scope, res.Dir))
	if len(res.Sessions) > 0 {
		msg += fmt.Sprintf("\n\nRemoved from session state: %s", strings.Join(res.Sessions, ", "))
	}
	return msg
}

func renderAudit(st styles, r audit.Result) string {
	var b strings.Builder
	b.WriteString(st.heading.Render("# Persona Audit: " + orUnknown(r.Archetype)))
	b.WriteString("\n\n")
	if r.Location != "" {
		fmt.Fprintf(&b, "- **Location**: %s\n", r.Location)
	}
	fmt.Fprintf(&b, "- **Created**: %s (%s", r.Age.Created, r.Age.Status)
	if r.Age.Status != audit.AgeUnknown {
		fmt.Fprintf(&b, ", %d months", r.Age.Months)
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "- **Lines**: %d (%s)\n", r.Quality.TotalLines, r.Quality.LengthStatus)
	fmt.Fprintf(&b, "- **Completeness**: %.0f%%\n", r.Quality.Completeness*100)
	if r.Quality.Tokens > 0 {
		fmt.Fprintf(&b, "- **Tokens**: ~%d\n", r.Quality.Tokens)
	}

	b.WriteString("\n")
	b.WriteString(st.heading.Render("## Sections"))
	b.WriteString("\n")
	for _, rule := range audit.Rules {
		s := r.Sections[rule.Key]
		if s.Present {
			fmt.Fprintf(&b, "- %s %s (%d lines)\n", st.ok.Render("✓"), rule.Title, s.LineCount)
		} else {
			fmt.Fprintf(&b, "- %s %s\n", st.warn.Render("✗"), rule.Title)
		}
	}

	b.WriteString("\n")
	if len(r.Suggestions) == 0 {
		b.WriteString("No suggestions.")
		return b.String()
	}
	b.WriteString(st.heading.Render("## Suggestions"))
	b.WriteString("\n")
	for _, s := range r.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// displayPath shows a persona directory relative to its scope root.
func displayPath(scope persona.Scope, dir string) string {
	rel := filepath.ToSlash(filepath.Join(persona.SkillsDir, filepath.Base(dir))) + "/"
	if scope == persona.ScopeUser {
		return "~/" + rel
	}
	return rel
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
