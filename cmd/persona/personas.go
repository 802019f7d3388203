package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/entrhq/persona/pkg/lifecycle"
	"github.com/entrhq/persona/pkg/persona"
)

func newLoadCmd(opts *rootOptions) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "load <archetype>...",
		Short: "Load personas into the session unless already loaded",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := opts.requireSession()
			if err != nil {
				return err
			}
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()
			a.log.SetSessionID(sessionID)

			results, err := a.ctrl.LoadMany(cmd.Context(), sessionID, args, lifecycle.LoadOptions{Validate: validate})
			if err != nil {
				return err
			}
			return opts.emit(cmd, results, func(w io.Writer) error {
				for i, res := range results {
					if i > 0 {
						if err := writeString(w, "\n---\n"); err != nil {
							return err
						}
					}
					if err := writeString(w, renderLoad(res)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Append a validation report for each loaded persona")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <archetype>",
		Short: "Show a persona without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.ctrl.Show(cmd.Context(), opts.sessionID(), args[0])
			if errors.Is(err, persona.ErrNotFound) {
				return opts.emit(cmd, map[string]bool{"found": false}, func(w io.Writer) error {
					return writeString(w, fmt.Sprintf("Persona '%s' not found in local or user scope.", args[0]))
				})
			}
			if err != nil {
				return err
			}
			return opts.emit(cmd, res, func(w io.Writer) error {
				return writeString(w, renderShow(res))
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		scope    string
		category string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "list [pattern]...",
		Short: "List available personas",
		Long:  "List personas from both scopes. Patterns are globs matched against the archetype, e.g. 'go-*'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			listOpts := persona.ListOptions{Category: category, Patterns: args}
			if scope != "" && scope != "all" {
				s, err := persona.ParseScope(scope)
				if err != nil {
					return err
				}
				listOpts.Scope = s
			}

			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			sessionID := opts.sessionID()
			if all {
				sessionID = ""
			}
			res, err := a.ctrl.List(cmd.Context(), sessionID, listOpts)
			if err != nil {
				return err
			}
			return opts.emit(cmd, res, func(w io.Writer) error {
				return writeString(w, renderList(newStyles(w), res))
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "Scope to list: local, user or all")
	cmd.Flags().StringVar(&category, "category", "", "Only list personas in this category")
	cmd.Flags().BoolVar(&all, "any-session", false, "Mark personas loaded in any session, not just this one")
	return cmd
}

func newExistsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <archetype>",
		Short: "Report whether a persona resolves and where",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			d, ok := a.ctrl.Exists(cmd.Context(), args[0])
			out := map[string]interface{}{"exists": ok}
			if ok {
				out["scope"] = d.Scope
				out["path"] = displayPath(d.Scope, d.Dir)
			}
			return opts.emit(cmd, out, func(w io.Writer) error {
				return writeString(w, renderExists(args[0], d))
			})
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "delete <archetype>",
		Short: "Delete a persona and drop it from every session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := persona.ParseScope(scope)
			if err != nil {
				return err
			}
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.ctrl.Delete(cmd.Context(), args[0], s)
			if errors.Is(err, persona.ErrNotFound) {
				return opts.emit(cmd, map[string]interface{}{"success": false, "error": fmt.Sprintf("Persona '%s' not found in %s scope", args[0], s)}, func(w io.Writer) error {
					return writeString(w, fmt.Sprintf("Persona '%s' not found in %s scope.", args[0], s))
				})
			}
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"success":      true,
				"deleted":      displayPath(res.Scope, res.Dir),
				"stateUpdated": len(res.Sessions) > 0,
			}
			return opts.emit(cmd, out, func(w io.Writer) error {
				return writeString(w, renderDelete(res))
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(persona.ScopeLocal), "Scope to delete from: local or user")
	return cmd
}
