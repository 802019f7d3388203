package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show loaded personas and auto-load configuration",
		Args:  cobra.NoArgs,
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

			res, err := a.ctrl.Status(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			return opts.emit(cmd, res, func(w io.Writer) error {
				return writeString(w, renderStatus(newStyles(w), res))
			})
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [archetype]",
		Short: "Forget loaded personas so they can be loaded again",
		Long: `Clear removes one persona, or all of them, from the session's delivery
history. Content already in the session's context stays there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := opts.requireSession()
			if err != nil {
				return err
			}
			var archetype string
			if len(args) == 1 {
				archetype = args[0]
			}

			a, err := opts.open("")
			if err != nil {
				return err
			}
			defer a.close()
			a.log.SetSessionID(sessionID)

			res, err := a.ctrl.Clear(cmd.Context(), sessionID, archetype)
			if err != nil {
				return err
			}
			return opts.emit(cmd, res, func(w io.Writer) error {
				return writeString(w, renderClear(res, archetype))
			})
		},
	}
}

func newCompactCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Print loaded persona content to preserve across compaction",
		Args:  cobra.NoArgs,
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

			res, err := a.ctrl.Compact(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			return opts.emit(cmd, res, func(w io.Writer) error {
				text := renderCompact(res)
				if text == "" {
					return nil
				}
				return writeString(w, text)
			})
		},
	}
}
