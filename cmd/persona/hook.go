package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/entrhq/persona/pkg/hook"
	"github.com/entrhq/persona/pkg/lifecycle"
)

func newHookCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Handle host lifecycle hooks (payload on stdin)",
		Long: `Hook commands read the host event as JSON on stdin. They always exit 0:
a failure is logged and reported on stderr but never blocks the host.`,
	}
	cmd.AddCommand(
		newSessionStartCmd(opts),
		newSessionEndCmd(opts),
		newSkillLoadedCmd(opts),
	)
	return cmd
}

// hookEvent reads the payload and applies --session over it.
func (o *rootOptions) hookEvent(cmd *cobra.Command) hook.Event {
	ev, err := hook.Read(cmd.InOrStdin(), o.env.getenv)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "persona: %v\n", err)
	}
	if o.session != "" {
		ev.SessionID = o.session
		ev.Origin = hook.OriginPayload
	}
	return ev
}

// runHook opens the app for the event's project and reports every error on
// stderr instead of failing.
func (o *rootOptions) runHook(cmd *cobra.Command, ev hook.Event, fn func(a *app) error) error {
	a, err := o.open(ev.Cwd)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "persona: %v\n", err)
		return nil
	}
	defer a.close()
	a.log.SetSessionID(ev.SessionID)
	a.log.Debugf("hook %q source=%s reason=%q origin=%s", ev.Name, ev.Source, ev.Reason, ev.Origin)
	if ev.RawSource != "" {
		a.log.Warnf("unknown session source %q, treating as startup", ev.RawSource)
	}

	if err := fn(a); err != nil {
		a.log.Errorf("hook failed: %v", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "persona: %v\n", err)
	}
	return nil
}

func newSessionStartCmd(opts *rootOptions) *cobra.Command {
	var (
		source          string
		restoredContent bool
	)
	cmd := &cobra.Command{
		Use:   "session-start",
		Short: "Restore, auto-load or re-inject personas when a session starts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := opts.hookEvent(cmd)
			if source != "" {
				if src, err := lifecycle.ParseSource(source); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "persona: %v\n", err)
				} else {
					ev.Source, ev.RawSource = src, ""
				}
			}

			return opts.runHook(cmd, ev, func(a *app) error {
				res, err := a.ctrl.Start(cmd.Context(), ev.SessionID, ev.Source, lifecycle.StartOptions{RestoredContent: restoredContent})
				if err != nil {
					return err
				}
				return opts.emit(cmd, res, func(w io.Writer) error {
					text := renderStart(res)
					if text == "" {
						return nil
					}
					return writeString(w, text)
				})
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Override the lifecycle source (startup, resume, clear, compact)")
	cmd.Flags().BoolVar(&restoredContent, "restored-content", true, "Emit the content of personas restored after a clear")
	return cmd
}

func newSessionEndCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "session-end",
		Short: "Hand loaded personas to the next session, or clean up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := opts.hookEvent(cmd)
			if reason != "" {
				ev.Reason = reason
			}
			return opts.runHook(cmd, ev, func(a *app) error {
				res, err := a.ctrl.End(cmd.Context(), ev.SessionID, ev.Reason)
				if err != nil {
					return err
				}
				return opts.emit(cmd, res, func(io.Writer) error { return nil })
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Override the end reason (clear hands personas over)")
	return cmd
}

func newSkillLoadedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "skill-loaded",
		Short: "Record a persona skill the host invoked by itself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := opts.hookEvent(cmd)
			archetype, ok := ev.PersonaSkill()
			if !ok {
				return nil
			}
			return opts.runHook(cmd, ev, func(a *app) error {
				added, err := a.ctrl.MarkLoaded(cmd.Context(), ev.SessionID, archetype)
				if err != nil {
					return err
				}
				a.log.Infof("skill %s marked loaded (new=%v)", archetype, len(added) > 0)
				return opts.emit(cmd, map[string]interface{}{"archetype": archetype, "added": len(added) > 0}, func(io.Writer) error { return nil })
			})
		},
	}
}
