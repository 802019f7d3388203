package persona

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/persona/pkg/logging"
)

// Resolver locates persona documents by walking an ordered list of
// (scope, convention) rules. Nothing is cached between calls.
type Resolver struct {
	store *Store
	rules []Rule
	log   *logging.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRules replaces the precedence rules.
func WithRules(rules []Rule) ResolverOption {
	return func(r *Resolver) { r.rules = rules }
}

// WithLogger sets the logger used for skipped documents.
func WithLogger(l *logging.Logger) ResolverOption {
	return func(r *Resolver) { r.log = l }
}

// NewResolver creates a resolver over store using the default rules:
// local before user, current convention before legacy.
func NewResolver(store *Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store: store,
		rules: Rules(Scopes, DefaultConventions()),
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules returns the precedence rules in evaluation order.
func (r *Resolver) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Store returns the underlying document store.
func (r *Resolver) Store() *Store {
	return r.store
}

// Resolve returns the authoritative descriptor for archetype, or
// ErrNotFound when no rule matches.
func (r *Resolver) Resolve(ctx context.Context, archetype string) (*Descriptor, error) {
	return r.resolve(ctx, archetype, r.rules)
}

// ResolveIn resolves archetype considering only one scope.
func (r *Resolver) ResolveIn(ctx context.Context, scope Scope, archetype string) (*Descriptor, error) {
	var rules []Rule
	for _, rule := range r.rules {
		if rule.Scope == scope {
			rules = append(rules, rule)
		}
	}
	return r.resolve(ctx, archetype, rules)
}

func (r *Resolver) resolve(ctx context.Context, archetype string, rules []Rule) (*Descriptor, error) {
	if !ValidArchetype(archetype) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, archetype)
	}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := r.store.Path(rule, archetype)
		if err != nil {
			r.log.Debugf("skipping rule %s/%s for %s: %v", rule.Scope, rule.Convention.Name, archetype, err)
			continue
		}
		if !r.store.Exists(path) {
			continue
		}
		raw, err := r.store.Read(path)
		if err != nil {
			return nil, err
		}
		return r.describe(rule, archetype, path, string(raw)), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, archetype)
}

// Exists reports whether archetype resolves.
func (r *Resolver) Exists(ctx context.Context, archetype string) bool {
	_, err := r.Resolve(ctx, archetype)
	return err == nil
}

// Content reads the document behind a descriptor.
func (r *Resolver) Content(d *Descriptor) (string, error) {
	raw, err := r.store.Read(d.Path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *Resolver) describe(rule Rule, archetype, path, content string) *Descriptor {
	fm, _, _ := ParseFrontmatter(content)
	dir, _ := r.store.Dir(rule, archetype)
	return &Descriptor{
		Archetype:   archetype,
		Scope:       rule.Scope,
		Convention:  rule.Convention.Name,
		Dir:         dir,
		Path:        path,
		Frontmatter: fm,
	}
}

// ListOptions filters List results.
type ListOptions struct {
	// Scope restricts results to one scope. Empty means all scopes.
	Scope Scope

	// Category keeps only personas with this category.
	Category string

	// Patterns keeps archetypes matching any of these globs (e.g. "qa-*").
	Patterns []string
}

// List enumerates every persona, applying the same precedence as Resolve
// per archetype: each archetype appears once, from its highest-precedence
// location. Unreadable documents are skipped. Results are sorted by
// archetype.
func (r *Resolver) List(ctx context.Context, opts ListOptions) ([]*Persona, error) {
	matchers := make([]glob.Glob, 0, len(opts.Patterns))
	for _, p := range opts.Patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("persona: invalid pattern %q: %w", p, err)
		}
		matchers = append(matchers, g)
	}

	entries := make(map[Scope][]string)
	seen := make(map[string]bool)
	var out []*Persona

	for _, rule := range r.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Scope != "" && rule.Scope != opts.Scope {
			continue
		}
		names, ok := entries[rule.Scope]
		if !ok {
			var err error
			names, err = r.store.Entries(rule.Scope)
			if err != nil {
				r.log.Warnf("listing %s scope: %v", rule.Scope, err)
			}
			entries[rule.Scope] = names
		}

		for _, name := range names {
			archetype, ok := rule.Convention.Archetype(name)
			if !ok || seen[archetype] {
				continue
			}
			path, err := r.store.Path(rule, archetype)
			if err != nil || !r.store.Exists(path) {
				continue
			}
			raw, err := r.store.Read(path)
			if err != nil {
				r.log.Debugf("skipping unreadable persona: %v", err)
				continue
			}
			seen[archetype] = true

			p := r.summarize(r.describe(rule, archetype, path, string(raw)), string(raw))
			if !matchesAny(matchers, archetype) {
				continue
			}
			if opts.Category != "" && p.Category != opts.Category {
				continue
			}
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Archetype < out[j].Archetype })
	return out, nil
}

func matchesAny(matchers []glob.Glob, s string) bool {
	if len(matchers) == 0 {
		return true
	}
	for _, m := range matchers {
		if m.Match(s) {
			return true
		}
	}
	return false
}

// Summarize builds the listing view of a resolved persona.
func (r *Resolver) Summarize(d *Descriptor) (*Persona, error) {
	content, err := r.Content(d)
	if err != nil {
		return nil, err
	}
	return r.summarize(d, content), nil
}

func (r *Resolver) summarize(d *Descriptor, content string) *Persona {
	p := &Persona{
		Descriptor:  *d,
		Description: r.skillDescription(d),
		Category:    d.Frontmatter.Category,
		Created:     d.Frontmatter.Created,
		LineCount:   CountLines(content),
		Keywords:    d.Frontmatter.Keywords,
	}
	if p.Description == "" {
		p.Description = Describe(content)
	}
	if p.Description == "" {
		p.Description = d.Archetype + " persona"
	}
	if p.Category == "" {
		p.Category = "uncategorized"
	}
	if p.Created == "" {
		p.Created = "unknown"
	}
	return p
}

// skillDescription reads the description of the SKILL.md that sits next
// to the persona document, if there is one.
func (r *Resolver) skillDescription(d *Descriptor) string {
	raw, err := r.store.fsys.ReadFile(filepath.Join(d.Dir, skillFileName))
	if err != nil {
		return ""
	}
	return parseSkillDescription(string(raw))
}

var roleSentence = regexp.MustCompile(`You are[^.]*\.`)

const descriptionLimit = 100

// Describe extracts a one-line description from a persona document: the
// first "You are..." sentence, else the first body paragraph, truncated.
func Describe(content string) string {
	if m := roleSentence.FindString(content); m != "" {
		return truncate(m)
	}
	_, body, _ := ParseFrontmatter(content)
	first, _, _ := strings.Cut(strings.TrimSpace(body), "\n\n")
	return truncate(strings.TrimSpace(first))
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= descriptionLimit {
		return s
	}
	return string(runes[:descriptionLimit]) + "..."
}
