package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/persona/pkg/persona"
)

// autoloadResult is the output of every autoload subcommand.
type autoloadResult struct {
	Config   string   `json:"config"`
	AutoLoad []string `json:"autoLoad"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

func newAutoloadCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoload",
		Short: "Manage personas loaded automatically at session start",
	}
	cmd.AddCommand(
		newAutoloadChangeCmd(opts, "add", "Configure personas to load at session start"),
		newAutoloadChangeCmd(opts, "remove", "Stop loading personas at session start"),
		newAutoloadListCmd(opts),
	)
	return cmd
}

func newAutoloadChangeCmd(opts *rootOptions, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <archetype>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				if !persona.ValidArchetype(a) {
					return fmt.Errorf("%w: %q", persona.ErrInvalidArchetype, a)
				}
			}
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.config.Load(); err != nil {
				return err
			}
			res := &autoloadResult{Config: a.config.Path()}
			if action == "add" {
				res.Added = a.config.AddAutoLoad(args...)
			} else {
				res.Removed = a.config.RemoveAutoLoad(args...)
			}
			if a.config.IsModified() {
				if err := a.config.Save(); err != nil {
					return err
				}
				a.log.Infof("autoload %s %v in %s", action, args, a.config.Path())
			}
			res.AutoLoad = append([]string{}, a.config.Project().AutoLoad...)
			for _, arch := range res.Added {
				if !a.resolver.Exists(cmd.Context(), arch) {
					res.Missing = append(res.Missing, arch)
				}
			}

			return opts.emit(cmd, res, func(w io.Writer) error {
				return writeString(w, renderAutoload(res))
			})
		},
	}
}

func newAutoloadListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the auto-load configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.config.AutoLoad()
			if err != nil {
				return err
			}
			res := &autoloadResult{Config: a.config.Path(), AutoLoad: append([]string{}, list...)}
			for _, arch := range list {
				if !a.resolver.Exists(cmd.Context(), arch) {
					res.Missing = append(res.Missing, arch)
				}
			}
			return opts.emit(cmd, res, func(w io.Writer) error {
				return writeString(w, renderAutoload(res))
			})
		},
	}
}

func renderAutoload(res *autoloadResult) string {
	var b strings.Builder
	if len(res.Added) > 0 {
		fmt.Fprintf(&b, "Added to auto-load: %s\n", strings.Join(res.Added, ", "))
	}
	if len(res.Removed) > 0 {
		fmt.Fprintf(&b, "Removed from auto-load: %s\n", strings.Join(res.Removed, ", "))
	}
	if len(res.Missing) > 0 {
		fmt.Fprintf(&b, "Not found (will be reported at session start): %s\n", strings.Join(res.Missing, ", "))
	}
	fmt.Fprintf(&b, "Auto-load: %s\n", joinOrNone(res.AutoLoad))
	fmt.Fprintf(&b, "Config: %s", res.Config)
	return b.String()
}
