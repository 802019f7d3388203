package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/persona/pkg/audit"
	"github.com/entrhq/persona/pkg/persona"
)

const locationFile = "file"

// document is persona content picked by archetype or by path.
type document struct {
	name     string
	content  string
	location string
}

// readDocument treats ref as a path when it names an existing file and as
// an archetype otherwise.
func (a *app) readDocument(cmd *cobra.Command, ref string) (*document, error) {
	if info, err := os.Stat(ref); err == nil && info.Mode().IsRegular() {
		raw, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ref, err)
		}
		return &document{name: ref, content: string(raw), location: a.locate(ref)}, nil
	}

	d, err := a.resolver.Resolve(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	content, err := a.resolver.Content(d)
	if err != nil {
		return nil, err
	}
	return &document{name: ref, content: content, location: string(d.Scope)}, nil
}

// locate reports which scope directory holds path, or "file".
func (a *app) locate(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return locationFile
	}
	for _, scope := range persona.Scopes {
		dir, err := a.resolver.Store().ScopeDir(scope)
		if err != nil {
			continue
		}
		if strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return string(scope)
		}
	}
	return locationFile
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		checkAge bool
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "audit [archetype|file]...",
		Short: "Score persona documents and suggest improvements",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("name a persona or file, or pass --all")
			}
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			refs := args
			if all {
				personas, err := a.resolver.List(cmd.Context(), persona.ListOptions{})
				if err != nil {
					return err
				}
				for _, p := range personas {
					refs = append(refs, p.Archetype)
				}
			}

			auditOpts := audit.Options{CheckAge: checkAge, Tokens: a.tokens}
			results := make([]audit.Result, 0, len(refs))
			for _, ref := range refs {
				doc, err := a.readDocument(cmd, ref)
				if errors.Is(err, persona.ErrNotFound) {
					return fmt.Errorf("persona '%s' not found in local or user scope", ref)
				}
				if err != nil {
					return err
				}
				auditOpts.Location = doc.location
				results = append(results, audit.Audit(doc.content, auditOpts))
			}

			var out interface{} = results
			if len(results) == 1 {
				out = results[0]
			}
			return opts.emit(cmd, out, func(w io.Writer) error {
				st := newStyles(w)
				for i, r := range results {
					if i > 0 {
						if err := writeString(w, ""); err != nil {
							return err
						}
					}
					if err := writeString(w, renderAudit(st, r)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&checkAge, "check-age", false, "Suggest refreshing aging and stale personas")
	cmd.Flags().BoolVar(&all, "all", false, "Audit every available persona")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var stdin bool
	cmd := &cobra.Command{
		Use:   "validate [archetype|file]",
		Short: "Check a persona document against the required structure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			switch {
			case stdin:
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(raw)
			case len(args) == 1:
				a, err := opts.open("")
				if err != nil {
					return err
				}
				defer a.close()

				doc, err := a.readDocument(cmd, args[0])
				if err != nil {
					v := notFoundValidation(args[0])
					return opts.emit(cmd, v, func(w io.Writer) error {
						return writeString(w, renderValidation(v))
					})
				}
				content = doc.content
			default:
				return errors.New("name a persona or file, or pass --stdin")
			}

			v := audit.Validate(content)
			return opts.emit(cmd, v, func(w io.Writer) error {
				return writeString(w, renderValidation(v))
			})
		},
	}
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Validate content read from stdin")
	return cmd
}

func notFoundValidation(ref string) audit.Validation {
	sections := make(map[string]bool, len(audit.Rules))
	for _, r := range audit.Rules {
		sections[r.Key] = false
	}
	return audit.Validation{
		Sections: sections,
		Errors:   []string{"File not found: " + ref},
		Warnings: []string{},
	}
}
