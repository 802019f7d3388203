package persona

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when an archetype does not resolve in any
	// scope or naming convention. It is an expected outcome.
	ErrNotFound = errors.New("persona: not found")

	// ErrInvalidArchetype is returned for identifiers that can never name
	// a persona directory.
	ErrInvalidArchetype = errors.New("persona: invalid archetype")
)

// Scope determines where a persona document is stored.
type Scope string

const (
	// ScopeLocal is the project the host session runs in.
	ScopeLocal Scope = "local"
	// ScopeUser is the user's global directory.
	ScopeUser Scope = "user"
)

// Scopes lists every scope in precedence order.
var Scopes = []Scope{ScopeLocal, ScopeUser}

// ParseScope converts user input into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeLocal:
		return ScopeLocal, nil
	case ScopeUser:
		return ScopeUser, nil
	default:
		return "", fmt.Errorf("persona: unknown scope %q", s)
	}
}

var kebabCase = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// ValidArchetype reports whether s is a kebab-case archetype identifier.
func ValidArchetype(s string) bool {
	return kebabCase.MatchString(s)
}

// Descriptor identifies one resolvable persona document.
type Descriptor struct {
	Archetype   string      `json:"archetype"`
	Scope       Scope       `json:"scope"`
	Convention  string      `json:"convention"` // name of the naming convention that matched
	Dir         string      `json:"dir"`        // persona directory
	Path        string      `json:"path"`       // absolute path of the persona document
	Frontmatter Frontmatter `json:"-"`
}

// Persona is a Descriptor enriched with the fields shown when listing.
type Persona struct {
	Descriptor
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Created     string   `json:"created"`
	LineCount   int      `json:"lineCount"`
	Keywords    []string `json:"keywords,omitempty"`
}

// CountLines counts lines the way the host tooling always has: a trailing
// newline starts one more (empty) line.
func CountLines(content string) int {
	return strings.Count(content, "\n") + 1
}
