package persona

import "strings"

// Convention is one generation of the on-disk naming scheme: a persona
// with archetype X lives in <skills dir>/<Prefix>X/<File>.
type Convention struct {
	Name   string
	Prefix string
	File   string
}

var (
	// ConventionCurrent is the skill layout used by the current plugin.
	ConventionCurrent = Convention{Name: "assume-persona", Prefix: "assume-persona--", File: "persona.md"}

	// ConventionLegacy is the earlier single-dash layout.
	ConventionLegacy = Convention{Name: "persona", Prefix: "persona-", File: "persona.md"}
)

// DefaultConventions returns the supported conventions, newest first.
func DefaultConventions() []Convention {
	return []Convention{ConventionCurrent, ConventionLegacy}
}

// DirName is the directory holding archetype under this convention.
func (c Convention) DirName(archetype string) string {
	return c.Prefix + archetype
}

// Archetype extracts the archetype from a directory name, if the name
// follows this convention.
func (c Convention) Archetype(dirName string) (string, bool) {
	archetype, ok := strings.CutPrefix(dirName, c.Prefix)
	if !ok || !ValidArchetype(archetype) {
		return "", false
	}
	return archetype, true
}

// Rule is one candidate location. Resolution evaluates rules in order and
// the first existing document wins.
type Rule struct {
	Scope      Scope
	Convention Convention
}

// Rules builds the precedence list: every convention of the first scope,
// then every convention of the next. A local document under a legacy name
// therefore outranks a user document under the current one.
func Rules(scopes []Scope, conventions []Convention) []Rule {
	rules := make([]Rule, 0, len(scopes)*len(conventions))
	for _, scope := range scopes {
		for _, conv := range conventions {
			rules = append(rules, Rule{Scope: scope, Convention: conv})
		}
	}
	return rules
}
